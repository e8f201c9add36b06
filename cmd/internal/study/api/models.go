package studyapi

import "studysprint/cmd/internal/study"

type startRequest struct {
	NumQ       int `json:"numQ"`
	TotalItems int `json:"totalItems"`
	Minutes    int `json:"minutes"`
}

type startResponse struct {
	Indices   []int64 `json:"indices"`
	Positions []int   `json:"positions"`
	SessionID string  `json:"sessionId"`
}

type saveRequest struct {
	SessionID string  `json:"sessionId"`
	Minutes   int     `json:"minutes"`
	Items     []int64 `json:"items"`
}

type saveResponse struct {
	OK bool `json:"ok"`
}

type listResponse struct {
	Sessions []study.Summary `json:"sessions"`
}
