package envconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersvc/internal/tracing"
)

func mapLookup(values map[string]string) Lookup {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestReader_ValidValues(t *testing.T) {
	r := NewReader(mapLookup(map[string]string{
		"ADDR":     " localhost:1 ",
		"DRIVER":   " PoStGrEs ",
		"FLAG":     "off",
		"COUNT":    "42",
		"U32":      "7",
		"RATIO":    "0.25",
		"INTERVAL": "250ms",
		"EMPTY":    "   ",
	}))

	addr, driver, empty := "default", "memory", "keep"
	flag := true
	count := 1
	var u32 uint32 = 1
	ratio := 0.5
	interval := time.Second

	r.String("ADDR", &addr)
	r.Lower("DRIVER", &driver)
	r.String("EMPTY", &empty)
	r.Bool("FLAG", &flag)
	r.Int("COUNT", &count, Positive[int], "must be > 0")
	r.Uint32("U32", &u32, Positive[uint32], "must be > 0")
	r.Float("RATIO", &ratio, Positive[float64], "must be > 0")
	r.Duration("INTERVAL", &interval, Positive[time.Duration], "must be > 0")

	require.Empty(t, r.Warnings())
	assert.Equal(t, "localhost:1", addr)
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "keep", empty)
	assert.False(t, flag)
	assert.Equal(t, 42, count)
	assert.Equal(t, uint32(7), u32)
	assert.InDelta(t, 0.25, ratio, 1e-9)
	assert.Equal(t, 250*time.Millisecond, interval)
}

func TestReader_InvalidValuesKeepDefaults(t *testing.T) {
	r := NewReader(mapLookup(map[string]string{
		"FLAG":     "sometimes",
		"COUNT":    "0",
		"U32":      "-1",
		"RATIO":    "abc",
		"INTERVAL": "-1s",
	}))

	flag := true
	count := 5
	var u32 uint32 = 3
	ratio := 0.5
	interval := time.Second

	r.Bool("FLAG", &flag)
	r.Int("COUNT", &count, Positive[int], "must be > 0")
	r.Uint32("U32", &u32, nil, "")
	r.Float("RATIO", &ratio, nil, "")
	r.Duration("INTERVAL", &interval, NonNegative[time.Duration], "must be >= 0")

	assert.Len(t, r.Warnings(), 5)
	assert.True(t, flag)
	assert.Equal(t, 5, count)
	assert.Equal(t, uint32(3), u32)
	assert.InDelta(t, 0.5, ratio, 1e-9)
	assert.Equal(t, time.Second, interval)
}

func TestParseBool(t *testing.T) {
	v, err := ParseBool(" YES ")
	require.NoError(t, err)
	assert.True(t, v)

	v, err = ParseBool("off")
	require.NoError(t, err)
	assert.False(t, v)

	_, err = ParseBool("sometimes")
	assert.Error(t, err)
}

func TestParseInt(t *testing.T) {
	v, err := ParseInt(" 12 ", Positive[int], "must be > 0")
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	_, err = ParseInt("0", Positive[int], "must be > 0")
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	v, err := ParseDuration(" 250ms ", NonNegative[time.Duration], "must be >= 0")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, v)

	_, err = ParseDuration("-1ms", NonNegative[time.Duration], "must be >= 0")
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("ENVCONFIG_TEST_VALUE=from-file\n"), 0o600))
	t.Setenv("ENVCONFIG_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("ENVCONFIG_TEST_VALUE"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), file))
	assert.Equal(t, "from-file", os.Getenv("ENVCONFIG_TEST_VALUE"))
}

func TestSetupLogger(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	SetupLogger(mapLookup(map[string]string{"LOG_LEVEL": "debug"}))
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	SetupLogger(mapLookup(map[string]string{"LOG_LEVEL": "loud"}))
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}

func TestReader_Tracing(t *testing.T) {
	r := NewReader(mapLookup(map[string]string{
		"ORDERS_TRACING_EXPORTER":     " Jaeger ",
		"ORDERS_JAEGER_ENDPOINT":      "http://jaeger:14268/api/traces",
		"ORDERS_TRACING_SAMPLE_RATIO": "0.25",
	}))
	cfg := tracing.DefaultConfig()
	r.Tracing("ORDERS", &cfg)

	assert.Empty(t, r.Warnings())
	assert.Equal(t, tracing.ExporterJaeger, cfg.Exporter)
	assert.Equal(t, "http://jaeger:14268/api/traces", cfg.JaegerEndpoint)
	assert.InDelta(t, 0.25, cfg.SampleRatio, 1e-9)

	r = NewReader(mapLookup(map[string]string{"INVENTORY_TRACING_SAMPLE_RATIO": "2"}))
	cfg = tracing.DefaultConfig()
	r.Tracing("INVENTORY", &cfg)
	assert.Len(t, r.Warnings(), 1)
	assert.Equal(t, tracing.DefaultConfig(), cfg)
}
