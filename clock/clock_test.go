package clock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/clock"
	"github.com/tsinghua-fib-lab/agentsociety-tsc/utils/config"
)

func TestClock(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 3600, Total: 2, Interval: 1})
	assert.Equal(t, "01:00:00", c.String())
	assert.False(t, c.Finished())
	c.Step()
	c.Step()
	assert.True(t, c.Finished())
	assert.Equal(t, int32(2), c.Elapsed())
	assert.Equal(t, 3602.0, c.T)

	c.Init()
	assert.Equal(t, int32(0), c.Elapsed())
}

func TestClockWithoutEnd(t *testing.T) {
	c := clock.New(config.ControlStep{Interval: 0.5})
	for i := 0; i < 100; i++ {
		c.Step()
	}
	assert.False(t, c.Finished())
	h, m, s := c.GetHourMinuteSecond()
	assert.Equal(t, 0, h)
	assert.Equal(t, 0, m)
	assert.Equal(t, 50.0, s)
}
