package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetUser(ctx))

	ctx = WithUser(WithRequestID(ctx, "req-1"), "Luke")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "Luke", GetUser(ctx))
}

func TestContextHook(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		want    map[string]string
		missing []string
	}{
		{
			name: "request id and user",
			ctx:  WithUser(WithRequestID(context.Background(), "req-1"), "Luke"),
			want: map[string]string{"request_id": "req-1", "user": "Luke"},
		},
		{
			name:    "only request id",
			ctx:     WithRequestID(context.Background(), "req-2"),
			want:    map[string]string{"request_id": "req-2"},
			missing: []string{"user"},
		},
		{
			name:    "background",
			ctx:     context.Background(),
			missing: []string{"request_id", "user"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf).Hook(ContextHook{})
			logger.Info().Ctx(tt.ctx).Msg("test")

			entry := decode(t, &buf)
			for k, v := range tt.want {
				assert.Equal(t, v, entry[k])
			}
			for _, k := range tt.missing {
				assert.NotContains(t, entry, k)
			}
		})
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	l := Component("sheetstore")
	l.Info().Msg("hello")
	assert.Equal(t, "sheetstore", decode(t, &buf)["cmp"])
}
