// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_DisabledIsNoop(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)

	// Shutdown on a noop provider must not fail.
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_RejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "dispsync",
		ExporterType: "udp",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported exporter type")
}

func TestTracer_ReturnsNamedTracer(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	tr := Tracer("dispsync-test")
	assert.NotNil(t, tr)

	_, span := tr.Start(context.Background(), "noop-span")
	span.End()
}
