package metafield

import (
	"context"
	"fmt"

	"orderimages/internal/annotations"
	"orderimages/internal/apperr"
)

type LookupState int

const (
	NotFound LookupState = iota
	Found
	Ambiguous
)

func (s LookupState) String() string {
	switch s {
	case NotFound:
		return "not_found"
	case Found:
		return "found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Lookup is the outcome of the query step. Record is set for Found,
// Conflicts for Ambiguous.
type Lookup struct {
	State     LookupState
	Record    *Record
	Conflicts []Record
}

type Action string

const (
	Created Action = "created"
	Updated Action = "updated"
)

type Result struct {
	Action    Action
	Metafield *Record
}

// Upserter reconciles the order's product_images metafield: query, then
// exactly one create or update. It holds no per-order state and is safe for
// concurrent use; two deliveries of the same order rely on Shopify's own
// per-resource consistency.
type Upserter struct {
	backend Backend
	scheme  Scheme
}

func NewUpserter(backend Backend, scheme Scheme) *Upserter {
	if backend == nil {
		panic("metafield.NewUpserter: nil backend")
	}
	if scheme == nil {
		scheme = JSONScheme{}
	}
	return &Upserter{backend: backend, scheme: scheme}
}

func (u *Upserter) Scheme() Scheme { return u.scheme }

func (u *Upserter) Lookup(ctx context.Context, orderID string) (Lookup, error) {
	records, err := u.backend.Query(ctx, orderID, Namespace, Key)
	if err != nil {
		return Lookup{}, err
	}

	// Backends filter server-side, but REST ignores unknown filters on some
	// API versions; only exact matches count.
	matches := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Namespace == Namespace && r.Key == Key {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return Lookup{State: NotFound}, nil
	case 1:
		return Lookup{State: Found, Record: &matches[0]}, nil
	default:
		return Lookup{State: Ambiguous, Conflicts: matches}, nil
	}
}

// Upsert writes items onto the order. The value is written even when it is
// identical to the stored one.
func (u *Upserter) Upsert(ctx context.Context, orderID string, items []annotations.Annotation) (*Result, error) {
	value, err := u.scheme.Encode(items)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "encode annotations", err)
	}
	in := Input{
		Namespace: Namespace,
		Key:       Key,
		Type:      u.scheme.Type(),
		Value:     value,
	}

	lookup, err := u.Lookup(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch lookup.State {
	case NotFound:
		rec, err := u.backend.Create(ctx, orderID, in)
		if err != nil {
			return nil, err
		}
		return &Result{Action: Created, Metafield: rec}, nil

	case Found:
		rec, err := u.backend.Update(ctx, orderID, lookup.Record.ID, in)
		if err != nil {
			return nil, err
		}
		return &Result{Action: Updated, Metafield: rec}, nil

	default:
		return nil, apperr.New(
			apperr.KindAmbiguousMetafieldState,
			fmt.Sprintf("order %s has %d %s.%s metafields", orderID, len(lookup.Conflicts), Namespace, Key),
		).WithDetails(lookup.Conflicts)
	}
}
