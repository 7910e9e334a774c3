// Package client queries Azure Resource Graph for virtual machines, paging
// through the result set and consulting the result cache first.
package client
