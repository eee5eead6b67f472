package sampler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cellmon/core/model"
)

type scriptedSampler struct {
	readings []model.Reading
	idx      int
	err      error
}

func (s *scriptedSampler) Sample(context.Context) (model.Reading, error) {
	if s.err != nil {
		return model.Reading{}, s.err
	}
	r := s.readings[s.idx%len(s.readings)]
	s.idx++
	return r, nil
}

func TestAveragingMeansAllFields(t *testing.T) {
	t0 := time.Now()
	src := &scriptedSampler{readings: []model.Reading{
		{VoltageVolts: 3.0, CurrentAmps: 1.0, TemperatureC: 20, Timestamp: t0},
		{VoltageVolts: 3.5, CurrentAmps: 2.0, TemperatureC: 22, Timestamp: t0.Add(time.Millisecond)},
	}}
	avg := Averaging{Sampler: src, Count: 2}
	r, err := avg.Next(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 3.25, r.VoltageVolts, 1e-12)
	assert.InDelta(t, 1.5, r.CurrentAmps, 1e-12)
	assert.InDelta(t, 21, r.TemperatureC, 1e-12)
	assert.Equal(t, t0.Add(time.Millisecond), r.Timestamp)
}

func TestAveragingSingleSamplePassthrough(t *testing.T) {
	src := &scriptedSampler{readings: []model.Reading{{VoltageVolts: 3.3}}}
	avg := Averaging{Sampler: src, Count: 0}
	r, err := avg.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.3, r.VoltageVolts)
	assert.Equal(t, 1, src.idx)
}

func TestAveragingPropagatesError(t *testing.T) {
	src := &scriptedSampler{err: errors.New("adc busy")}
	avg := Averaging{Sampler: src, Count: 20}
	_, err := avg.Next(context.Background())
	assert.Error(t, err)
}
