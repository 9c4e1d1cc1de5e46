package client

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/swrmeter/pkg/config"
	"github.com/dougsko/swrmeter/pkg/engine"
	"github.com/dougsko/swrmeter/pkg/hardware"
)

func startMeter(t *testing.T) (*engine.Meter, *SocketClient) {
	t.Helper()

	cfg := config.Default()
	ec := engine.ConfigFrom(cfg)
	adc := hardware.NewMockADC(hardware.MockADCConfig{
		ResolutionBits: ec.Sampler.ResolutionBits,
		VRef:           ec.Sampler.VRef,
		SupplyDivider:  ec.Sampler.SupplyDivider,
		Forward:        ec.Forward,
		Reflected:      ec.Reflected,
		SupplyVolts:    13.8,
	})

	m, err := engine.New(ec, engine.Devices{ADC: adc})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	path := filepath.Join(t.TempDir(), "swr.sock")
	server := engine.NewSocketServer(m, nil, path)
	require.NoError(t, server.Start())
	t.Cleanup(func() { server.Stop() })

	return m, NewSocketClient(path)
}

func TestSocketClient(t *testing.T) {
	m, c := startMeter(t)
	m.Cycle(time.Now())

	t.Run("Connected", func(t *testing.T) {
		assert.True(t, c.IsConnected())
		assert.False(t, NewSocketClient(filepath.Join(t.TempDir(), "none.sock")).IsConnected())
	})

	t.Run("Status", func(t *testing.T) {
		status, err := c.GetStatus()
		require.NoError(t, err)
		assert.Equal(t, engine.Version, status.Version)
		assert.Equal(t, "default", status.Profile)
	})

	t.Run("Reading", func(t *testing.T) {
		r, err := c.GetReading()
		require.NoError(t, err)
		assert.False(t, r.Transmitting)
		assert.False(t, r.Reading.HasSignal())
	})

	t.Run("Options", func(t *testing.T) {
		require.NoError(t, c.SetOption("weight", "250"))
		m.Cycle(time.Now())

		o, err := c.GetOptions()
		require.NoError(t, err)
		assert.Equal(t, 250, o.Weight.Value)
		assert.Error(t, c.SetOption("weight", "-5"))
	})

	t.Run("Profile And Bands", func(t *testing.T) {
		assert.NoError(t, c.SetProfile("calibrate"))
		assert.Error(t, c.SetProfile("fast"))

		info, err := c.GetBands()
		require.NoError(t, err)
		assert.Len(t, info.Bands, 12)
	})

	t.Run("Errors Surface", func(t *testing.T) {
		err := c.SetFrequency(14074000)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "frequency error")

		_, err = c.GetHistory(5)
		assert.Error(t, err)
	})
}
