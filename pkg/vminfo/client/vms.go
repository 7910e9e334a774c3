package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/telekom/azure-vminfo/pkg/metrics"
	"github.com/telekom/azure-vminfo/pkg/vminfo/auth"
	"github.com/telekom/azure-vminfo/pkg/vminfo/inventory"
)

// Query returns the virtual machines selected by d.
//
// With useCache set, a cached result for the descriptor's fingerprint is
// returned without network access. Otherwise every page is fetched in order;
// the complete result is cached only when it started at offset zero. A failure
// after the first page yields ErrPartialFetchAborted and leaves the cache
// untouched. When the first page is refused as an expired or invalid token and
// the token source implements TokenInvalidator, the token is renewed and the
// query runs once more.
func (c *Client) Query(ctx context.Context, d inventory.Descriptor, useCache bool) ([]inventory.VirtualMachine, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d = d.Normalize()
	match, err := d.Matcher()
	if err != nil {
		return nil, err
	}
	fp := inventory.FingerprintOf(d)
	log := c.log.With("fingerprint", fp.Short())

	if useCache && c.cache != nil {
		if vms, ok := c.lookup(ctx, fp, d.Skip); ok {
			log.Debugw("Serving query from result cache", "records", len(vms))
			return vms, nil
		}
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	correlationID := uuid.NewString()
	log = log.With("correlationId", correlationID)
	start := time.Now()
	vms, err := c.fetchAll(ctx, token, correlationID, d)
	if inv, ok := c.tokens.(TokenInvalidator); ok && rejectedOnFirstPage(err) {
		log.Infow("Resource Graph rejected the token, renewing it", "error", err)
		vms, err = c.retryWithNewToken(ctx, inv, token, correlationID, d)
	}
	if err != nil {
		log.Debugw("Resource Graph query failed", "error", err)
		return nil, err
	}
	metrics.QueryDuration.Observe(time.Since(start).Seconds())

	vms = finalize(vms, match, d.IncludeExtensions)
	log.Debugw("Resource Graph query complete", "records", len(vms), "duration", time.Since(start))

	if c.cache != nil && d.Skip == 0 {
		err := c.cache.Put(ctx, fp, vms)
		metrics.CacheWrites.WithLabelValues(metrics.Outcome(err)).Inc()
		if err != nil {
			log.Warnw("Failed to write result cache", "error", err)
		}
	}
	return vms, nil
}

func (c *Client) lookup(ctx context.Context, fp inventory.Fingerprint, skip int) ([]inventory.VirtualMachine, bool) {
	entry, ok, err := c.cache.Get(ctx, fp)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.log.Warnw("Ignoring unreadable result cache", "error", err)
		return nil, false
	case !ok:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	if skip >= len(entry.VMs) {
		return []inventory.VirtualMachine{}, true
	}
	return entry.VMs[skip:], true
}

// fetchAll pages through the result set starting at d.Skip. Paging ends when
// the reported total is reached or a page comes back empty.
func (c *Client) fetchAll(ctx context.Context, token, correlationID string, d inventory.Descriptor) ([]inventory.VirtualMachine, error) {
	body := queryRequest{
		Query:         buildQuery(d),
		Subscriptions: d.Subscriptions,
		Options: requestOptions{
			Skip:         d.Skip,
			Top:          d.Top,
			ResultFormat: "objectArray",
		},
	}

	var collected []inventory.VirtualMachine
	offset := d.Skip
	for page := 1; ; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, pageError(page, err)
		}
		resp, err := c.fetchPage(ctx, token, correlationID, body)
		metrics.QueryPages.WithLabelValues(metrics.Outcome(err)).Inc()
		if err != nil {
			return nil, pageError(page, err)
		}
		metrics.QueryRecords.Add(float64(len(resp.Data)))
		c.log.Debugw("Fetched Resource Graph page", "page", page, "records", len(resp.Data),
			"totalRecords", resp.TotalRecords, "correlationId", correlationID)

		collected = append(collected, resp.Data...)
		offset += len(resp.Data)
		if len(resp.Data) == 0 || offset >= resp.TotalRecords {
			break
		}
		body.Options.SkipToken = resp.SkipToken
		body.Options.Skip = offset
		if resp.SkipToken != "" {
			// the continuation token carries the position
			body.Options.Skip = 0
		}
	}
	return collected, nil
}

// rejectedOnFirstPage reports whether the server refused the token before any
// page was received.
func rejectedOnFirstPage(err error) bool {
	return errors.Is(err, auth.ErrAuthExpired) && !errors.Is(err, ErrPartialFetchAborted)
}

// retryWithNewToken discards the rejected token and runs the query once more.
// A second rejection is returned as is.
func (c *Client) retryWithNewToken(ctx context.Context, inv TokenInvalidator, rejected, correlationID string, d inventory.Descriptor) ([]inventory.VirtualMachine, error) {
	if err := inv.InvalidateToken(ctx, rejected); err != nil {
		return nil, err
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.fetchAll(ctx, token, correlationID, d)
}

func pageError(page int, err error) error {
	if page == 1 {
		return err
	}
	return fmt.Errorf("%w at page %d: %w", ErrPartialFetchAborted, page, err)
}

// finalize drops duplicate and non-matching records, keeping first-seen order.
func finalize(vms []inventory.VirtualMachine, match func(string) bool, withExtensions bool) []inventory.VirtualMachine {
	seen := make(map[string]struct{}, len(vms))
	out := make([]inventory.VirtualMachine, 0, len(vms))
	for _, vm := range vms {
		key := vm.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if !match(vm.Name) {
			continue
		}
		if !withExtensions || vm.Extensions == nil {
			vm.Extensions = []inventory.Extension{}
		}
		out = append(out, vm)
	}
	return out
}
