package inventory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPDecodingTreatsMissingValuesAlike(t *testing.T) {
	inputs := map[string]string{
		"null":       `{"vmName":"a","privateIp":null}`,
		"empty":      `{"vmName":"a","privateIp":""}`,
		"omitted":    `{"vmName":"a"}`,
		"garbage":    `{"vmName":"a","privateIp":"not-an-ip"}`,
		"non-string": `{"vmName":"a","privateIp":42}`,
	}
	var decoded []VirtualMachine
	for name, input := range inputs {
		var vm VirtualMachine
		require.NoError(t, json.Unmarshal([]byte(input), &vm), name)
		assert.False(t, vm.PrivateIP.IsPresent(), name)
		assert.Equal(t, "", vm.PrivateIP.String(), name)
		decoded = append(decoded, vm)
	}
	for _, vm := range decoded[1:] {
		assert.Equal(t, decoded[0].PrivateIP, vm.PrivateIP)
	}
}

func TestIPDecodingPresent(t *testing.T) {
	var vm VirtualMachine
	require.NoError(t, json.Unmarshal([]byte(`{"privateIp":"10.0.0.4","publicIp":"2001:db8::1"}`), &vm))
	assert.Equal(t, "10.0.0.4", vm.PrivateIP.String())
	assert.Equal(t, "2001:db8::1", vm.PublicIP.String())
}

func TestIPEncoding(t *testing.T) {
	data, err := json.Marshal(struct {
		A IP `json:"a"`
		B IP `json:"b"`
	}{A: ParseIP("10.1.2.3")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"10.1.2.3","b":null}`, string(data))
}
