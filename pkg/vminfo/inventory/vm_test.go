package inventory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resourceGraphRow = `{
  "subscriptionId": "00000000-0000-0000-0000-000000000001",
  "rg": "rg-linux",
  "vmId": "/subscriptions/00000000-0000-0000-0000-000000000001/resourceGroups/rg-linux/providers/Microsoft.Compute/virtualMachines/linux-01",
  "vmName": "linux-01",
  "location": "westeurope",
  "created": "2024-05-01T10:00:00Z",
  "vmSize": "Standard_D2s_v5",
  "osType": "Linux",
  "osName": "ubuntu",
  "osVersion": "22.04",
  "powerstate": "PowerState/running",
  "sub": "platform-prod",
  "virtualNetwork": "vnet-prod",
  "subnet": "snet-app",
  "privateIP": "10.0.0.4",
  "publicIp": null,
  "tags": {"env": "prod", "cost-center": 1234, "owner": null},
  "extensions": [
    {"name": "AzureMonitorLinuxAgent", "publisher": "Microsoft.Azure.Monitor", "typeHandlerVersion": "1.29", "provisioningState": "Succeeded"},
    {"name": "CustomScript", "version": "2.1"}
  ]
}`

func TestVirtualMachineDecodesResourceGraphRow(t *testing.T) {
	var vm VirtualMachine
	require.NoError(t, json.Unmarshal([]byte(resourceGraphRow), &vm))

	assert.Equal(t, "linux-01", vm.Name)
	assert.Equal(t, "rg-linux", vm.ResourceGroup)
	assert.Equal(t, "platform-prod", vm.Subscription)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", vm.SubscriptionID)
	assert.Equal(t, "PowerState/running", vm.PowerState)
	// privateIP with different casing still decodes
	assert.Equal(t, "10.0.0.4", vm.PrivateIP.String())
	assert.False(t, vm.PublicIP.IsPresent())

	assert.Equal(t, map[string]string{"env": "prod", "cost-center": "1234", "owner": ""}, vm.Tags)

	require.Len(t, vm.Extensions, 2)
	assert.Equal(t, Extension{Name: "AzureMonitorLinuxAgent", Publisher: "Microsoft.Azure.Monitor", TypeHandlerVersion: "1.29", ProvisioningState: "Succeeded"}, vm.Extensions[0])
	assert.Equal(t, "2.1", vm.Extensions[1].TypeHandlerVersion)
}

func TestVirtualMachineRoundTrip(t *testing.T) {
	var vm VirtualMachine
	require.NoError(t, json.Unmarshal([]byte(resourceGraphRow), &vm))

	data, err := json.Marshal(vm)
	require.NoError(t, err)

	var again VirtualMachine
	require.NoError(t, json.Unmarshal(data, &again))
	assert.Equal(t, vm, again)
}

func TestVirtualMachineTagsRoundTrip(t *testing.T) {
	for name, tags := range map[string]map[string]string{
		"absent": nil,
		"empty":  {},
		"set":    {"env": "prod"},
	} {
		data, err := json.Marshal(VirtualMachine{Name: "a", Tags: tags})
		require.NoError(t, err, name)

		var again VirtualMachine
		require.NoError(t, json.Unmarshal(data, &again), name)
		assert.Equal(t, tags, again.Tags, name)
	}
}

func TestVirtualMachineUnparseableIPIsDropped(t *testing.T) {
	var vm VirtualMachine
	require.NoError(t, json.Unmarshal([]byte(`{"vmName":"a","privateIp":"10.0.0.300"}`), &vm))
	assert.False(t, vm.PrivateIP.IsPresent())

	data, err := json.Marshal(vm)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"privateIp":null`)
}

func TestVirtualMachineNonObjectTags(t *testing.T) {
	var vm VirtualMachine
	require.NoError(t, json.Unmarshal([]byte(`{"vmName":"a","tags":"[]"}`), &vm))
	assert.Nil(t, vm.Tags)
}

func TestVirtualMachineKey(t *testing.T) {
	a := VirtualMachine{ID: "/subscriptions/X/resourceGroups/RG/providers/Microsoft.Compute/virtualMachines/VM1"}
	b := VirtualMachine{ID: "/subscriptions/x/resourcegroups/rg/providers/microsoft.compute/virtualmachines/vm1"}
	assert.Equal(t, a.Key(), b.Key())

	c := VirtualMachine{SubscriptionID: "S", ResourceGroup: "RG", Name: "VM"}
	assert.Equal(t, "s/rg/vm", c.Key())
}
