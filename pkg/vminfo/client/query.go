package client

import (
	"strings"

	"github.com/telekom/azure-vminfo/pkg/vminfo/inventory"
)

const nameColumn = "tolower(tostring(name))"

const vmProjection = "| extend nics=array_length(properties.networkProfile.networkInterfaces) " +
	"| mv-expand nic=properties.networkProfile.networkInterfaces " +
	"| where nics == 1 or nic.properties.primary =~ 'true' or isempty(nic) " +
	"| project subscriptionId, rg=resourceGroup, vmId = id, vmName = name, location = tostring(location), " +
	"created = tostring(properties.timeCreated), vmSize = tostring(properties.hardwareProfile.vmSize), " +
	"nicId = tostring(nic.id), osType = tostring(properties.storageProfile.osDisk.osType), " +
	"osName = tostring(properties.extended.instanceView.osName), " +
	"osVersion = tostring(properties.extended.instanceView.osVersion), " +
	"powerstate = tostring(properties.extended.instanceView.powerState.code)"

const subscriptionJoin = "| join kind=leftouter (ResourceContainers " +
	"| where type == 'microsoft.resources/subscriptions' " +
	"| project sub=name, subscriptionId) on subscriptionId"

const networkJoin = "| join kind=leftouter (Resources " +
	"| where type =~ 'microsoft.network/networkinterfaces' " +
	"| extend ipConfigsCount=array_length(properties.ipConfigurations) " +
	"| extend subnetId = tostring(properties.ipConfigurations[0].properties.subnet.id) " +
	"| extend virtualNetwork = tostring(split(substring(subnetId, indexof(subnetId, '/virtualNetworks/') + strlen('/virtualNetworks/')), '/')[0]) " +
	"| extend subnet = substring(subnetId, indexof(subnetId, '/subnets/') + strlen('/subnets/')) " +
	"| mv-expand ipconfig=properties.ipConfigurations " +
	"| where ipConfigsCount == 1 or ipconfig.properties.primary =~ 'true' " +
	"| project nicId = id, subnet, virtualNetwork, privateIp = tostring(ipconfig.properties.privateIPAddress), " +
	"publicIpId = tolower(tostring(ipconfig.properties.publicIPAddress.id))) on nicId " +
	"| join kind=leftouter (Resources " +
	"| where type =~ 'microsoft.network/publicipaddresses' " +
	"| project publicIpId = tolower(id), publicIp = tostring(properties.ipAddress)) on publicIpId"

const extensionsJoin = "| join kind=leftouter (Resources " +
	"| where type =~ 'microsoft.compute/virtualmachines/extensions' " +
	"| extend vmId = substring(id, 0, indexof(id, '/extensions')) " +
	"| extend d = pack('name', name, 'publisher', tostring(properties.publisher), " +
	"'typeHandlerVersion', tostring(properties.typeHandlerVersion), " +
	"'provisioningState', tostring(properties.provisioningState)) " +
	"| summarize extensions = make_list(d) by vmId) on vmId"

// buildQuery renders the KQL for a normalized descriptor.
func buildQuery(d inventory.Descriptor) string {
	var b strings.Builder
	b.WriteString("Resources | where type =~ 'microsoft.compute/virtualmachines' | where ")
	b.WriteString(nameFilter(d.Terms, d.RegexpMode))
	b.WriteString(" ")
	b.WriteString(vmProjection)
	if d.IncludeTags {
		b.WriteString(", tags = tags")
	}
	b.WriteString(" ")
	b.WriteString(subscriptionJoin)
	b.WriteString(" ")
	b.WriteString(networkJoin)
	if d.IncludeExtensions {
		b.WriteString(" ")
		b.WriteString(extensionsJoin)
	}
	b.WriteString(" | order by vmName asc")
	return b.String()
}

func nameFilter(terms []string, regexpMode bool) string {
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, quoteKQL(term))
	}
	if !regexpMode {
		return nameColumn + " in (" + strings.Join(quoted, ", ") + ")"
	}
	clauses := make([]string, 0, len(quoted))
	for _, q := range quoted {
		clauses = append(clauses, nameColumn+" matches regex "+q)
	}
	return "(" + strings.Join(clauses, " or ") + ")"
}

// quoteKQL renders s as a verbatim string literal, in which only the quote
// character needs escaping. Backslashes in patterns pass through unchanged.
func quoteKQL(s string) string {
	return "@'" + strings.ReplaceAll(s, "'", "''") + "'"
}
