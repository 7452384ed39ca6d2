// Package ordernumber は注文IDと外部公開用の注文番号を相互に変換する
//
// 形式: PREFIX + yyMMdd + "-" + BODY + CHECK
// BODY は (ID + salt) の36進数（大文字）、CHECK は yyMMdd + BODY に対する Luhn mod 36 のチェック文字。
// 日付部分は Codec に設定したタイムゾーンで決まる（既定は UTC）。
// 例: ID=1 を 2025-08-26 に発行すると FX250826-OGC5O
package ordernumber

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/clock"
)

const (
	DefaultPrefix       = "FX"
	DefaultSalt   int64 = 1140916

	alphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	dateLayout = "060102"
	separator  = '-'
)

var ErrInvalidOrderNumber = errors.New("注文番号が不正です")

// Codec は注文番号のエンコーダ／デコーダ
type Codec struct {
	prefix string
	salt   int64
	clock  clock.Clock
	loc    *time.Location
}

// Option は Codec の設定を変更する
type Option func(*Codec)

// WithPrefix は注文番号の接頭辞を設定する
func WithPrefix(prefix string) Option {
	return func(c *Codec) { c.prefix = prefix }
}

// WithSalt はIDに加算するソルトを設定する
func WithSalt(salt int64) Option {
	return func(c *Codec) { c.salt = salt }
}

// WithClock は日付部分に使う時計を設定する
func WithClock(clk clock.Clock) Option {
	return func(c *Codec) { c.clock = clk }
}

// WithLocation は日付部分を決めるタイムゾーンを設定する
func WithLocation(loc *time.Location) Option {
	return func(c *Codec) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// New は Codec を作成する
func New(opts ...Option) *Codec {
	c := &Codec{prefix: DefaultPrefix, salt: DefaultSalt, clock: clock.NewSystem(), loc: time.UTC}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode は現在日付で注文番号を生成する
func (c *Codec) Encode(id int64) (string, error) {
	return c.EncodeAt(id, c.clock.Now())
}

// EncodeAt は指定日時で注文番号を生成する
// 日付は at の Location ではなく Codec のタイムゾーンで決めるため、同じ時刻なら常に同じ番号になる
func (c *Codec) EncodeAt(id int64, at time.Time) (string, error) {
	if id <= 0 || id > math.MaxInt64-c.salt {
		return "", ErrInvalidOrderNumber
	}
	body := strings.ToUpper(strconv.FormatInt(id+c.salt, 36))
	payload := at.In(c.loc).Format(dateLayout) + body

	var b strings.Builder
	b.Grow(len(c.prefix) + len(payload) + 2)
	b.WriteString(c.prefix)
	b.WriteString(payload[:len(dateLayout)])
	b.WriteByte(separator)
	b.WriteString(body)
	b.WriteByte(checkChar(payload))
	return b.String(), nil
}

// Decode は注文番号から注文IDを復元する
// 形式・日付・チェック文字のいずれかが不正なら ErrInvalidOrderNumber を返す
func (c *Codec) Decode(s string) (int64, error) {
	rest, ok := strings.CutPrefix(s, c.prefix)
	if !ok || len(rest) < len(dateLayout)+3 {
		return 0, ErrInvalidOrderNumber
	}
	date := rest[:len(dateLayout)]
	if !isDigits(date) {
		return 0, ErrInvalidOrderNumber
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return 0, ErrInvalidOrderNumber
	}
	if rest[len(dateLayout)] != separator {
		return 0, ErrInvalidOrderNumber
	}

	token := rest[len(dateLayout)+1:]
	body, check := token[:len(token)-1], token[len(token)-1]
	if body[0] == '0' {
		return 0, ErrInvalidOrderNumber
	}
	for i := 0; i < len(token); i++ {
		if strings.IndexByte(alphabet, token[i]) < 0 {
			return 0, ErrInvalidOrderNumber
		}
	}
	if checkChar(date+body) != check {
		return 0, ErrInvalidOrderNumber
	}

	v, err := strconv.ParseInt(body, 36, 64)
	if err != nil {
		return 0, ErrInvalidOrderNumber
	}
	id := v - c.salt
	if id <= 0 {
		return 0, ErrInvalidOrderNumber
	}
	return id, nil
}

// checkChar は Luhn mod N（N=36）のチェック文字を返す
func checkChar(payload string) byte {
	const n = len(alphabet)
	factor, sum := 2, 0
	for i := len(payload) - 1; i >= 0; i-- {
		addend := factor * strings.IndexByte(alphabet, payload[i])
		factor = 3 - factor
		sum += addend/n + addend%n
	}
	return alphabet[(n-sum%n)%n]
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
