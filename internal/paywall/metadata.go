package paywall

import "fmt"

// Metadata keys attached to every PaymentIntent and Checkout Session.
const (
	MetaType          = "type"
	MetaContentItemID = "contentItemId"
	MetaPurchaserID   = "purchaserId"
)

// Kind is the purchase type carried in metadata.
type Kind string

const (
	KindSingle   Kind = "single"
	KindLifetime Kind = "lifetime"
)

// SingleMetadata tags an intent for one content item.
func SingleMetadata(contentItemID, purchaserID string) map[string]string {
	m := map[string]string{
		MetaType:          string(KindSingle),
		MetaContentItemID: contentItemID,
	}
	if purchaserID != "" {
		m[MetaPurchaserID] = purchaserID
	}
	return m
}

// LifetimeMetadata tags an intent for lifetime access.
func LifetimeMetadata(purchaserID string) map[string]string {
	m := map[string]string{
		MetaType: string(KindLifetime),
	}
	if purchaserID != "" {
		m[MetaPurchaserID] = purchaserID
	}
	return m
}

// Tag is metadata that has been checked for completeness.
type Tag struct {
	Kind          Kind
	ContentItemID string // set only for KindSingle
}

// ParseMetadata validates the metadata of a completed payment. A missing or
// unknown type, or a single purchase without a content item, is
// ErrInvalidInput.
func ParseMetadata(m map[string]string) (Tag, error) {
	switch Kind(m[MetaType]) {
	case KindSingle:
		id := m[MetaContentItemID]
		if id == "" {
			return Tag{}, fmt.Errorf("%w: single purchase without %s", ErrInvalidInput, MetaContentItemID)
		}
		return Tag{Kind: KindSingle, ContentItemID: id}, nil
	case KindLifetime:
		return Tag{Kind: KindLifetime}, nil
	case "":
		return Tag{}, fmt.Errorf("%w: metadata has no %s", ErrInvalidInput, MetaType)
	default:
		return Tag{}, fmt.Errorf("%w: unknown purchase type %q", ErrInvalidInput, m[MetaType])
	}
}
