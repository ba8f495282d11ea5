package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInitDataMissing = errors.New("webapp init data missing")
	ErrInitDataInvalid = errors.New("webapp init data invalid")
	ErrInitDataExpired = errors.New("webapp init data expired")
)

// WebAppUser is the identity Telegram vouches for in WebApp init data.
type WebAppUser struct {
	ID       string
	Username string
}

// InitDataVerifier checks the signed initData string the Telegram client
// hands to a WebApp. The signing key is HMAC-SHA256("WebAppData", bot token).
type InitDataVerifier struct {
	key    []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewInitDataVerifier rejects init data older than maxAge. A zero maxAge
// disables the age check.
func NewInitDataVerifier(botToken string, maxAge time.Duration) (*InitDataVerifier, error) {
	if botToken == "" {
		return nil, errors.New("bot token is empty")
	}
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return &InitDataVerifier{key: mac.Sum(nil), maxAge: maxAge, now: time.Now}, nil
}

// Verify returns the user embedded in initData.
func (v *InitDataVerifier) Verify(initData string) (WebAppUser, error) {
	if initData == "" {
		return WebAppUser{}, ErrInitDataMissing
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return WebAppUser{}, fmt.Errorf("%w: %v", ErrInitDataInvalid, err)
	}
	got, err := hex.DecodeString(values.Get("hash"))
	if err != nil || len(got) == 0 {
		return WebAppUser{}, fmt.Errorf("%w: bad hash", ErrInitDataInvalid)
	}

	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(dataCheckString(values)))
	if !hmac.Equal(got, mac.Sum(nil)) {
		return WebAppUser{}, fmt.Errorf("%w: signature mismatch", ErrInitDataInvalid)
	}

	if v.maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil {
			return WebAppUser{}, fmt.Errorf("%w: auth_date", ErrInitDataInvalid)
		}
		if v.now().Sub(time.Unix(authDate, 0)) > v.maxAge {
			return WebAppUser{}, ErrInitDataExpired
		}
	}

	var user struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID == 0 {
		return WebAppUser{}, fmt.Errorf("%w: user", ErrInitDataInvalid)
	}
	return WebAppUser{ID: strconv.FormatInt(user.ID, 10), Username: user.Username}, nil
}

// dataCheckString joins every field but hash as sorted key=value lines.
func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + values.Get(k)
	}
	return strings.Join(lines, "\n")
}
