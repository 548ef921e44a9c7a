// Package envconfig читает настройки сервисов из переменных окружения.
// Некорректные значения не роняют запуск: остаётся значение по умолчанию, а причина
// попадает в список предупреждений.
package envconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/tracing"
)

// Lookup возвращает значение переменной и признак её наличия (как os.LookupEnv).
type Lookup func(key string) (string, bool)

// LoadDotEnv подгружает переменные из файлов .env, не перетирая уже заданные.
// Отсутствующий файл не считается ошибкой.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Reader накапливает предупреждения о некорректных значениях.
type Reader struct {
	lookup   Lookup
	warnings []string
}

// NewReader создаёт Reader; nil lookup означает os.LookupEnv.
func NewReader(lookup Lookup) *Reader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Reader{lookup: lookup}
}

// Warnings возвращает накопленные предупреждения.
func (r *Reader) Warnings() []string {
	return r.warnings
}

func (r *Reader) raw(key string) (string, bool) {
	value, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (r *Reader) warn(key, value string, err error) {
	r.warnings = append(r.warnings, fmt.Sprintf("%s=%q ignored: %v", key, value, err))
}

// String перезаписывает dst непустым значением переменной.
func (r *Reader) String(key string, dst *string) {
	if value, ok := r.raw(key); ok {
		*dst = value
	}
}

// Lower как String, но приводит значение к нижнему регистру.
func (r *Reader) Lower(key string, dst *string) {
	if value, ok := r.raw(key); ok {
		*dst = strings.ToLower(value)
	}
}

// Bool читает bool в формате ParseBool.
func (r *Reader) Bool(key string, dst *bool) {
	value, ok := r.raw(key)
	if !ok {
		return
	}
	parsed, err := ParseBool(value)
	if err != nil {
		r.warn(key, value, err)
		return
	}
	*dst = parsed
}

// Int читает int, проверяя его valid.
func (r *Reader) Int(key string, dst *int, valid func(int) bool, rule string) {
	value, ok := r.raw(key)
	if !ok {
		return
	}
	parsed, err := ParseInt(value, valid, rule)
	if err != nil {
		r.warn(key, value, err)
		return
	}
	*dst = parsed
}

// Uint32 читает uint32, проверяя его valid.
func (r *Reader) Uint32(key string, dst *uint32, valid func(uint32) bool, rule string) {
	value, ok := r.raw(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		r.warn(key, value, err)
		return
	}
	if valid != nil && !valid(uint32(parsed)) {
		r.warn(key, value, errors.New(rule))
		return
	}
	*dst = uint32(parsed)
}

// Float читает float64, проверяя его valid.
func (r *Reader) Float(key string, dst *float64, valid func(float64) bool, rule string) {
	value, ok := r.raw(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.warn(key, value, err)
		return
	}
	if valid != nil && !valid(parsed) {
		r.warn(key, value, errors.New(rule))
		return
	}
	*dst = parsed
}

// Tracing читает <prefix>_TRACING_EXPORTER, <prefix>_JAEGER_ENDPOINT и <prefix>_TRACING_SAMPLE_RATIO.
func (r *Reader) Tracing(prefix string, cfg *tracing.Config) {
	r.Lower(prefix+"_TRACING_EXPORTER", &cfg.Exporter)
	r.String(prefix+"_JAEGER_ENDPOINT", &cfg.JaegerEndpoint)
	r.Float(prefix+"_TRACING_SAMPLE_RATIO", &cfg.SampleRatio, func(v float64) bool { return v > 0 && v <= 1 }, "must be in (0, 1]")
}

// Duration читает time.Duration, проверяя её valid.
func (r *Reader) Duration(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
	value, ok := r.raw(key)
	if !ok {
		return
	}
	parsed, err := ParseDuration(value, valid, rule)
	if err != nil {
		r.warn(key, value, err)
		return
	}
	*dst = parsed
}

// ParseBool дополнительно к strconv понимает yes/no и on/off.
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

// ParseInt разбирает int и проверяет его valid.
func ParseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("invalid int value %d: %s", value, rule)
	}
	return value, nil
}

// ParseDuration разбирает time.Duration и проверяет её valid.
func ParseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("invalid duration value %s: %s", value, rule)
	}
	return value, nil
}

// SetupLogger настраивает формат и уровень logrus; level берётся из LOG_LEVEL.
func SetupLogger(lookup Lookup) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	raw, ok := lookup("LOG_LEVEL")
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}
	level, err := log.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		log.WithError(err).Warn("invalid LOG_LEVEL, using info")
		return
	}
	log.SetLevel(level)
}

// Positive и NonNegative: типовые проверки для Int и Duration.
func Positive[T int | uint32 | float64 | time.Duration](v T) bool { return v > 0 }

func NonNegative[T int | uint32 | float64 | time.Duration](v T) bool { return v >= 0 }
