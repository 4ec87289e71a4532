package bootstrap

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"

	"github.com/persiashop/storefront-backend/pkg/config"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

func testProcess(out *bytes.Buffer) *Process {
	return &Process{
		Config: &config.Config{},
		Log:    logger.New(logger.Options{ServiceName: "test", Output: out}),
	}
}

func TestCloseRunsNewestFirstAndCollectsErrors(t *testing.T) {
	var out bytes.Buffer
	p := testProcess(&out)
	var order []string
	p.OnClose("database", func() error { order = append(order, "database"); return errors.New("db busy") })
	p.OnClose("redis", func() error { order = append(order, "redis"); return nil })
	p.OnClose("pubsub", func() error { order = append(order, "pubsub"); return errors.New("pubsub stuck") })

	err := p.Close()

	assert.Equal(t, []string{"pubsub", "redis", "database"}, order)
	assert.Len(t, multierr.Errors(err), 2)
	assert.ErrorContains(t, err, "close database: db busy")
	assert.Contains(t, out.String(), "shutdown cleanup failed")

	assert.NoError(t, p.Close(), "closers run once")
}

func TestSignalContextCarriesProcessFields(t *testing.T) {
	var out bytes.Buffer
	p := testProcess(&out)
	p.Config.App.Env = "staging"
	p.Config.Service.Kind = "cron-worker"

	ctx, stop := p.SignalContext(map[string]any{"topics": []string{"storefront-events"}})
	defer stop()
	p.Log.Info(ctx, "hello")

	assert.Contains(t, out.String(), `"env":"staging"`)
	assert.Contains(t, out.String(), `"serviceKind":"cron-worker"`)
	assert.Contains(t, out.String(), `"topics":["storefront-events"]`)
}
