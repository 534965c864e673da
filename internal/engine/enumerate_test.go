package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwygoda/golfscrape/internal/domain"
)

func drain(e Enumerator) []domain.Unit {
	var out []domain.Unit
	for {
		u, ok := e.Next()
		if !ok {
			return out
		}
		out = append(out, u)
	}
}

func TestPages_BoundedFromStart(t *testing.T) {
	e, err := Pages{Last: 5}.Open(context.Background(), domain.Position{Minor: 3})
	require.NoError(t, err)

	units := drain(e)
	require.Len(t, units, 3)
	assert.Equal(t, 3, units[0].Page)
	assert.Equal(t, 5, units[2].Page)
}

func TestPages_ExhaustedEndsSequence(t *testing.T) {
	e, err := Pages{}.Open(context.Background(), domain.Position{})
	require.NoError(t, err)

	first, _ := e.Next()
	second, _ := e.Next()
	assert.Equal(t, 1, first.Page)
	e.Exhausted(second)

	_, ok := e.Next()
	assert.False(t, ok)
}

func TestPages_InvalidRange(t *testing.T) {
	_, err := Pages{First: 5, Last: 2}.Open(context.Background(), domain.Position{})
	assert.True(t, domain.IsFatal(err))
}

func TestItems_Open(t *testing.T) {
	ctx := context.Background()

	_, err := Items{}.Open(ctx, domain.Position{})
	assert.ErrorIs(t, err, domain.ErrMissingInput)

	_, err = Items{Load: func(context.Context) ([]domain.Record, error) {
		return nil, errors.New("no such file")
	}}.Open(ctx, domain.Position{})
	assert.True(t, domain.IsFatal(err))

	e, err := Items{Load: func(context.Context) ([]domain.Record, error) {
		return []domain.Record{{"link": "/0"}, {"link": "/1"}, {"link": "/2"}}, nil
	}}.Open(ctx, domain.Position{Minor: 1})
	require.NoError(t, err)

	units := drain(e)
	require.Len(t, units, 2)
	assert.Equal(t, "/1", units[0].Item["link"])
	assert.Equal(t, domain.Position{Minor: 2}, units[1].Pos)
}

func TestRegions_Order(t *testing.T) {
	e, err := Regions{Names: []string{"seoul", "busan"}, MaxPages: 2}.Open(context.Background(), domain.Position{})
	require.NoError(t, err)

	units := drain(e)
	require.Len(t, units, 4)
	assert.Equal(t, "seoul", units[0].Region)
	assert.Equal(t, domain.Position{Major: 0, Minor: 2}, units[1].Pos)
	assert.Equal(t, "busan", units[2].Region)
	assert.Equal(t, 1, units[2].Page)
}

func TestRegions_ResumeAndExhaust(t *testing.T) {
	e, err := Regions{Names: []string{"seoul", "busan", "jeju"}}.Open(context.Background(), domain.Position{Major: 1, Minor: 3})
	require.NoError(t, err)

	u, _ := e.Next()
	assert.Equal(t, "busan", u.Region)
	assert.Equal(t, 3, u.Page)

	e.Exhausted(u)
	u, _ = e.Next()
	assert.Equal(t, "jeju", u.Region)
	assert.Equal(t, 1, u.Page)
}

func TestRegions_NoneConfigured(t *testing.T) {
	_, err := Regions{}.Open(context.Background(), domain.Position{})
	assert.ErrorIs(t, err, domain.ErrMissingInput)
}
