package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyperjump/schemalign/internal/models"
)

type memorySink struct {
	saved  []*models.Record
	err    error
	closed bool
}

func (m *memorySink) Save(_ context.Context, rec *models.Record) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, rec)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	a, b, c := &memorySink{}, &memorySink{err: boom}, &memorySink{}
	m := Multi{a, b, c}

	err := m.Save(context.Background(), newTestRecord("r"))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.saved, 1)
	assert.Len(t, c.saved, 1, "later sinks still run after a failure")

	_, found, err := m.SourceVersion(context.Background(), "r")
	assert.NoError(t, err)
	assert.False(t, found, "no sink supports version lookup")

	assert.NoError(t, m.Close())
	assert.True(t, a.closed && b.closed && c.closed)
}
