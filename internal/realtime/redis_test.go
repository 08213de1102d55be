package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/dental-lab/internal/model"
)

func TestChannel(t *testing.T) {
	assert.Equal(t, "realtime:orders", Channel(model.TableOrders))
}

func TestDecode(t *testing.T) {
	ch, err := decode("realtime:orders", `{"table":"orders","type":"UPDATE","new":{"id":1}}`)
	require.NoError(t, err)
	assert.Equal(t, model.TableOrders, ch.Table)
	assert.Equal(t, model.EventUpdate, ch.Type)
	assert.JSONEq(t, `{"id":1}`, string(ch.New))
}

func TestDecode_TableFromChannel(t *testing.T) {
	ch, err := decode("realtime:patients", `{"type":"DELETE","old":{"id":4}}`)
	require.NoError(t, err)
	assert.Equal(t, model.TablePatients, ch.Table)
}

func TestDecode_Errors(t *testing.T) {
	_, err := decode("realtime:orders", `not json`)
	assert.Error(t, err)

	_, err = decode("realtime:", `{"type":"INSERT"}`)
	assert.Error(t, err)
}
