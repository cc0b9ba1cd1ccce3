package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Name string
}

func TestReturnProxy_ResolveAttr(t *testing.T) {
	producer, err := ScheduledTask(Thread, "producer", "", noopTarget, Options{})
	require.NoError(t, err)
	proxy := producer.ReturnValue().Attr("Name")

	value, err := proxy.resolve(testRecord{Name: "value"})
	require.NoError(t, err)
	assert.Equal(t, "value", value)
}

func TestReturnProxy_ResolveIndexSlice(t *testing.T) {
	producer, err := ScheduledTask(Thread, "producer", "", noopTarget, Options{})
	require.NoError(t, err)
	proxy := producer.ReturnValue().Index(1)

	value, err := proxy.resolve([]string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, "b", value)
}

func TestReturnProxy_ResolveIndexMap(t *testing.T) {
	producer, err := ScheduledTask(Thread, "producer", "", noopTarget, Options{})
	require.NoError(t, err)
	proxy := producer.ReturnValue().Index("key")

	value, err := proxy.resolve(map[string]int{"key": 42})
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestReturnProxy_ResolveChained(t *testing.T) {
	producer, err := ScheduledTask(Thread, "producer", "", noopTarget, Options{})
	require.NoError(t, err)
	proxy := producer.ReturnValue().Index(0).Attr("Name")

	value, err := proxy.resolve([]testRecord{{Name: "first"}, {Name: "second"}})
	require.NoError(t, err)
	assert.Equal(t, "first", value)
}

func TestReturnProxy_ResolveIndexOutOfRange(t *testing.T) {
	producer, err := ScheduledTask(Thread, "producer", "", noopTarget, Options{})
	require.NoError(t, err)
	proxy := producer.ReturnValue().Index(5)

	_, err = proxy.resolve([]string{"a"})
	assert.Error(t, err)
}

func TestReturnProxy_ResolveMissingAttr(t *testing.T) {
	producer, err := ScheduledTask(Thread, "producer", "", noopTarget, Options{})
	require.NoError(t, err)
	proxy := producer.ReturnValue().Attr("DoesNotExist")

	_, err = proxy.resolve(testRecord{Name: "value"})
	assert.Error(t, err)
}

func TestReturnProxy_Producer(t *testing.T) {
	producer, err := ScheduledTask(Thread, "producer", "", noopTarget, Options{})
	require.NoError(t, err)
	proxy := producer.ReturnValue()
	assert.Same(t, producer, proxy.Producer())
}
