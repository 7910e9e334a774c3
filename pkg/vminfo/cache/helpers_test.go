package cache

import (
	"github.com/telekom/azure-vminfo/pkg/vminfo/inventory"
)

func testVMs(names ...string) []inventory.VirtualMachine {
	vms := make([]inventory.VirtualMachine, 0, len(names))
	for _, name := range names {
		vms = append(vms, inventory.VirtualMachine{
			ID:             "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.Compute/virtualMachines/" + name,
			Name:           name,
			SubscriptionID: "sub",
			ResourceGroup:  "rg",
			Location:       "westeurope",
			PrivateIP:      inventory.ParseIP("10.0.0.4"),
			Tags:           map[string]string{"env": "test"},
			Extensions:     []inventory.Extension{},
		})
	}
	return vms
}
