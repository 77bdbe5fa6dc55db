// SPDX-License-Identifier: MIT

package product

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherInvalidatesCacheOnExternalWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newTestStore(t)
	require.NoError(t, s.StartWatcher(ctx))

	_, err := s.Create(ctx, "demoA", 1)
	require.NoError(t, err)

	rois, err := s.Load(ctx, "demoA")
	require.NoError(t, err)
	require.Equal(t, DefaultFocus, rois[0].Focus)

	// edit the config behind the store's back
	data, err := os.ReadFile(s.configPath("demoA"))
	require.NoError(t, err)
	edited := strings.Replace(string(data), `"focus": 300`, `"focus": 777`, 1)
	require.NotEqual(t, string(data), edited)
	require.NoError(t, os.WriteFile(s.configPath("demoA"), []byte(edited), 0o600))

	require.Eventually(t, func() bool {
		rois, err := s.Load(ctx, "demoA")
		return err == nil && len(rois) > 0 && rois[0].Focus == 777
	}, 3*time.Second, 25*time.Millisecond, "cache should drop after an external write")
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.StartWatcher(ctx))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
