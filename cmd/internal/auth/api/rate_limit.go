package authapi

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"studysprint/cmd/identity"
	"studysprint/cmd/internal/httpx"
	"studysprint/cmd/kv"
)

// failureWindow is the failed-login state kept per client IP and per username.
type failureWindow struct {
	Count int       `json:"count"`
	Last  time.Time `json:"last"`
}

// loginThrottle counts failed logins under throttle:ip:<ip> and throttle:user:<username>.
// A nil *loginThrottle allows everything.
type loginThrottle struct {
	cfg      Config
	failures *kv.Records[failureWindow]
}

func newLoginThrottle(st kv.Store, cfg Config) *loginThrottle {
	ttl := max(cfg.LoginIPWindow, cfg.LoginUserWindow, cfg.LockoutShortDuration, cfg.LockoutLongDuration, cfg.LockoutSevereDuration)
	return &loginThrottle{
		cfg:      cfg,
		failures: kv.NewRecords[failureWindow](st, "throttle", kv.WithTTL(ttl)),
	}
}

// check reports whether a login from ip for username must be refused, and for how long.
func (t *loginThrottle) check(ctx context.Context, now time.Time, ip net.IP, username string) (bool, time.Duration, error) {
	if t == nil {
		return false, 0, nil
	}
	if blocked, retryAfter, err := t.checkIP(ctx, now, ip); err != nil || blocked {
		return blocked, retryAfter, err
	}
	return t.checkUser(ctx, now, username)
}

func (t *loginThrottle) checkIP(ctx context.Context, now time.Time, ip net.IP) (bool, time.Duration, error) {
	if ip == nil || t.cfg.LoginIPMax <= 0 {
		return false, 0, nil
	}
	fw, err := t.load(ctx, "ip", ip.String())
	if err != nil || fw.Count < t.cfg.LoginIPMax {
		return false, 0, err
	}
	return blockedUntil(fw.Last.Add(t.cfg.LoginIPWindow), now)
}

func (t *loginThrottle) checkUser(ctx context.Context, now time.Time, username string) (bool, time.Duration, error) {
	if !throttledUsername(username) {
		return false, 0, nil
	}
	fw, err := t.load(ctx, "user", username)
	if err != nil {
		return false, 0, err
	}
	d := t.lockoutFor(fw.Count)
	if d <= 0 {
		return false, 0, nil
	}
	return blockedUntil(fw.Last.Add(d), now)
}

// lockoutFor maps a failure count to its progressive lockout duration.
func (t *loginThrottle) lockoutFor(count int) time.Duration {
	switch {
	case t.cfg.LockoutSevereThreshold > 0 && count >= t.cfg.LockoutSevereThreshold:
		return t.cfg.LockoutSevereDuration
	case t.cfg.LockoutLongThreshold > 0 && count >= t.cfg.LockoutLongThreshold:
		return t.cfg.LockoutLongDuration
	case t.cfg.LockoutShortThreshold > 0 && count >= t.cfg.LockoutShortThreshold:
		return t.cfg.LockoutShortDuration
	default:
		return 0
	}
}

// recordFailure bumps both counters. A counter idle for longer than its window restarts at 1.
func (t *loginThrottle) recordFailure(ctx context.Context, now time.Time, ip net.IP, username string) error {
	if t == nil {
		return nil
	}
	var errs []error
	if ip != nil && t.cfg.LoginIPMax > 0 {
		errs = append(errs, t.bump(ctx, now, t.cfg.LoginIPWindow, "ip", ip.String()))
	}
	if throttledUsername(username) {
		errs = append(errs, t.bump(ctx, now, t.cfg.LoginUserWindow, "user", username))
	}
	return errors.Join(errs...)
}

// reset clears the username counter after a successful login. The IP counter is kept.
func (t *loginThrottle) reset(ctx context.Context, username string) error {
	if t == nil || !throttledUsername(username) {
		return nil
	}
	return t.failures.Delete(ctx, "user", username)
}

func (t *loginThrottle) bump(ctx context.Context, now time.Time, window time.Duration, id ...string) error {
	_, err := t.failures.Update(ctx, func(cur failureWindow, found bool) (failureWindow, error) {
		if !found || now.Sub(cur.Last) > window {
			cur = failureWindow{}
		}
		cur.Count++
		cur.Last = now
		return cur, nil
	}, id...)
	return err
}

func (t *loginThrottle) load(ctx context.Context, id ...string) (failureWindow, error) {
	fw, err := t.failures.Get(ctx, id...)
	if errors.Is(err, kv.ErrNotFound) {
		return failureWindow{}, nil
	}
	return fw, err
}

// throttledUsername keeps arbitrary request bodies from minting unbounded keys.
func throttledUsername(username string) bool {
	return username != "" && utf8.RuneCountInString(username) <= identity.MaxUsernameLength
}

func blockedUntil(until, now time.Time) (bool, time.Duration, error) {
	if !now.Before(until) {
		return false, 0, nil
	}
	return true, until.Sub(now), nil
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(retryAfter), 10))
	}
	httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}

func retryAfterSeconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}
