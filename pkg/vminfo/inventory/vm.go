package inventory

import (
	"encoding/json"
	"strings"
)

// VirtualMachine is one row of the Resource Graph projection. JSON field
// matching is case-insensitive, so upstream casing drift (privateIP vs
// privateIp) still decodes.
type VirtualMachine struct {
	ID             string            `json:"vmId" yaml:"vmId"`
	Name           string            `json:"vmName" yaml:"vmName"`
	Created        string            `json:"created,omitempty" yaml:"created,omitempty"`
	SubscriptionID string            `json:"subscriptionId" yaml:"subscriptionId"`
	Subscription   string            `json:"sub,omitempty" yaml:"sub,omitempty"`
	Location       string            `json:"location" yaml:"location"`
	ResourceGroup  string            `json:"rg" yaml:"rg"`
	VMSize         string            `json:"vmSize,omitempty" yaml:"vmSize,omitempty"`
	OSType         string            `json:"osType,omitempty" yaml:"osType,omitempty"`
	OSName         string            `json:"osName,omitempty" yaml:"osName,omitempty"`
	OSVersion      string            `json:"osVersion,omitempty" yaml:"osVersion,omitempty"`
	PowerState     string            `json:"powerstate,omitempty" yaml:"powerstate,omitempty"`
	VirtualNetwork string            `json:"virtualNetwork,omitempty" yaml:"virtualNetwork,omitempty"`
	Subnet         string            `json:"subnet,omitempty" yaml:"subnet,omitempty"`
	PrivateIP      IP                `json:"privateIp" yaml:"privateIp"`
	PublicIP       IP                `json:"publicIp" yaml:"publicIp"`
	Tags           map[string]string `json:"tags" yaml:"tags,omitempty"`
	Extensions     []Extension       `json:"extensions" yaml:"extensions"`
}

// Extension describes an installed VM extension.
type Extension struct {
	Name               string `json:"name" yaml:"name"`
	Publisher          string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	TypeHandlerVersion string `json:"typeHandlerVersion,omitempty" yaml:"typeHandlerVersion,omitempty"`
	ProvisioningState  string `json:"provisioningState,omitempty" yaml:"provisioningState,omitempty"`
}

// UnmarshalJSON also accepts the short "version" key for the handler version.
func (e *Extension) UnmarshalJSON(data []byte) error {
	type plain Extension
	var aux struct {
		plain
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = Extension(aux.plain)
	if e.TypeHandlerVersion == "" {
		e.TypeHandlerVersion = aux.Version
	}
	return nil
}

// UnmarshalJSON decodes tags leniently: values are stringified and a non-object
// tags field is dropped.
func (vm *VirtualMachine) UnmarshalJSON(data []byte) error {
	type plain VirtualMachine
	var aux struct {
		plain
		Tags json.RawMessage `json:"tags"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*vm = VirtualMachine(aux.plain)
	vm.Tags = decodeTags(aux.Tags)
	return nil
}

func decodeTags(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil || values == nil {
		return nil
	}
	tags := make(map[string]string, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case string:
			tags[k] = val
		case nil:
			tags[k] = ""
		default:
			encoded, _ := json.Marshal(val)
			tags[k] = string(encoded)
		}
	}
	return tags
}

// Key identifies a VM across pages. Resource IDs are case-insensitive in Azure.
func (vm VirtualMachine) Key() string {
	if vm.ID != "" {
		return strings.ToLower(vm.ID)
	}
	return strings.ToLower(vm.SubscriptionID + "/" + vm.ResourceGroup + "/" + vm.Name)
}
