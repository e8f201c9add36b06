package pool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

const (
	maxTitleRunes = 80
	defaultTitle  = "Question"
	defaultTopic  = "general"
)

// Card is one normalized pool entry. Every field is always set to a displayable value.
type Card struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Title    string `json:"title"`
	Topic    string `json:"topic"`
}

// Parse decodes a pool document. Only a non-array top level is an error; elements that are not
// objects, and fields that are missing or not strings, degrade to defaults.
func Parse(data []byte) ([]Card, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, ErrNotArray
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArray, err)
	}

	cards := make([]Card, len(raw))
	for i, el := range raw {
		cards[i] = normalize(el)
	}
	return cards, nil
}

func normalize(el json.RawMessage) Card {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(el, &fields); err != nil {
		fields = nil
	}

	c := Card{
		Question: stringField(fields, "question"),
		Answer:   stringField(fields, "answer"),
		Title:    stringField(fields, "title"),
		Topic:    stringField(fields, "topic"),
	}
	if c.Title == "" {
		c.Title = truncateRunes(c.Question, maxTitleRunes)
	}
	if c.Title == "" {
		c.Title = defaultTitle
	}
	if c.Topic == "" {
		c.Topic = defaultTopic
	}
	return c
}

func stringField(fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
