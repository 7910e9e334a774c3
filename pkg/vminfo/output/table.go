package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/telekom/azure-vminfo/pkg/vminfo/cache"
	"github.com/telekom/azure-vminfo/pkg/vminfo/inventory"
)

// WriteVMs renders vms in the requested format.
func WriteVMs(w io.Writer, spec Spec, vms []inventory.VirtualMachine) error {
	switch spec.Format {
	case FormatTable:
		WriteVMTable(w, vms)
		return nil
	case FormatWide:
		WriteVMTableWide(w, vms)
		return nil
	case FormatTemplate:
		return WriteTemplate(w, spec.Template, vms)
	default:
		return WriteObject(w, spec.Format, vms)
	}
}

func WriteVMTable(w io.Writer, vms []inventory.VirtualMachine) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tSUBSCRIPTION\tRESOURCE_GROUP\tLOCATION\tPRIVATE_IP\tPOWER_STATE")
	for _, vm := range vms {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", vm.Name, subscription(vm), vm.ResourceGroup,
			vm.Location, ipOrDash(vm.PrivateIP), powerState(vm.PowerState))
	}
	_ = tw.Flush()
}

func WriteVMTableWide(w io.Writer, vms []inventory.VirtualMachine) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tSUBSCRIPTION\tRESOURCE_GROUP\tLOCATION\tSIZE\tOS\tPRIVATE_IP\tPUBLIC_IP\tVNET/SUBNET\tPOWER_STATE\tTAGS\tEXTENSIONS")
	for _, vm := range vms {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			vm.Name, subscription(vm), vm.ResourceGroup, vm.Location, dash(vm.VMSize), osLabel(vm),
			ipOrDash(vm.PrivateIP), ipOrDash(vm.PublicIP), network(vm), powerState(vm.PowerState),
			formatTags(vm.Tags), formatExtensions(vm.Extensions))
	}
	_ = tw.Flush()
}

// WriteCacheSummaries lists cache entries with their age relative to now.
func WriteCacheSummaries(w io.Writer, summaries []cache.Summary, now time.Time) {
	if len(summaries) == 0 {
		_, _ = fmt.Fprintln(w, "Result cache is empty.")
		return
	}
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FINGERPRINT\tRECORDS\tFETCHED\tAGE")
	for _, s := range summaries {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.Fingerprint.Short(), s.Records,
			formatTime(s.FetchedAt), formatAge(now.Sub(s.FetchedAt)))
	}
	_ = tw.Flush()
}

func subscription(vm inventory.VirtualMachine) string {
	if vm.Subscription != "" {
		return vm.Subscription
	}
	return dash(vm.SubscriptionID)
}

// powerState strips the PowerState/ prefix Azure puts on instance view codes.
func powerState(code string) string {
	return dash(strings.TrimPrefix(code, "PowerState/"))
}

func osLabel(vm inventory.VirtualMachine) string {
	switch {
	case vm.OSName != "" && vm.OSVersion != "":
		return vm.OSName + " " + vm.OSVersion
	case vm.OSName != "":
		return vm.OSName
	default:
		return dash(vm.OSType)
	}
}

func network(vm inventory.VirtualMachine) string {
	if vm.VirtualNetwork == "" && vm.Subnet == "" {
		return "-"
	}
	return dash(vm.VirtualNetwork) + "/" + dash(vm.Subnet)
}

func ipOrDash(ip inventory.IP) string {
	if !ip.IsPresent() {
		return "-"
	}
	return ip.String()
}

func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+tags[k])
	}
	return strings.Join(pairs, ",")
}

func formatExtensions(exts []inventory.Extension) string {
	if len(exts) == 0 {
		return "-"
	}
	names := make([]string, 0, len(exts))
	for _, e := range exts {
		names = append(names, e.Name)
	}
	return strings.Join(names, ",")
}

func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
