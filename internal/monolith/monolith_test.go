package monolith_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/pair-arbitrage/internal/config"
	"github.com/fd1az/pair-arbitrage/internal/di"
	"github.com/fd1az/pair-arbitrage/internal/logger"
	"github.com/fd1az/pair-arbitrage/internal/monolith"
)

type recordingModule struct {
	name    string
	order   *[]string
	startup error
}

func (m recordingModule) RegisterServices(c di.Container) error {
	c.Register(m.name, m.name)
	return nil
}

func (m recordingModule) Startup(_ context.Context, mono monolith.Monolith) error {
	*m.order = append(*m.order, mono.Services().Get(m.name).(string))
	return m.startup
}

func TestMonolith_Modules(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	app, err := monolith.New(cfg, logger.NewNop(), "test")
	require.NoError(t, err)

	assert.Equal(t, 2, app.AssetRegistry().Count())
	_, ok := app.AssetRegistry().BySymbol("tka")
	assert.True(t, ok)
	assert.True(t, app.Services().Has("config"))
	assert.True(t, app.Services().Has("health"))

	var order []string
	boom := errors.New("boom")
	first := recordingModule{name: "first", order: &order}
	second := recordingModule{name: "second", order: &order, startup: boom}
	third := recordingModule{name: "third", order: &order}

	require.NoError(t, app.RegisterModules(first, second, third))
	err = app.StartModules(context.Background(), first, second, third)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.NoError(t, app.Close(context.Background()))
}
