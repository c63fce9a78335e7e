package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/lexicon"
)

// VendorStore persists vendor identities. Lookups return common.ErrNotFound
// when nothing matches.
type VendorStore interface {
	FindByTaxID(ctx context.Context, taxID string) (*entity.VendorIdentity, error)
	FindByNameKey(ctx context.Context, key string) (*entity.VendorIdentity, error)
	Create(ctx context.Context, v *entity.VendorIdentity, nameKey string) (*entity.VendorIdentity, error)
	Update(ctx context.Context, v *entity.VendorIdentity, nameKey string) (*entity.VendorIdentity, error)
}

var (
	reCompanySuffix = regexp.MustCompile(`(?i)\b(?:PVT|PRIVATE|LTD|LIMITED|LLP|INC|CO|COMPANY|M/S|THE)\b\.?`)
	reKeyPunct      = regexp.MustCompile(`[^a-z0-9 ]+`)
)

// NameKey reduces a vendor name to the key used for name lookups: the
// address tail and company suffixes are dropped and the rest casefolded.
func NameKey(lx *lexicon.Lexicon, name string) string {
	if i := lx.AddressIndex(name); i > 0 {
		name = name[:i]
	}
	name = reCompanySuffix.ReplaceAllString(name, " ")
	name = reKeyPunct.ReplaceAllString(strings.ToLower(name), " ")
	return strings.Join(strings.Fields(name), " ")
}

// VendorResolver finds or creates the canonical vendor for an extracted
// header and fills in whatever the stored record is missing.
type VendorResolver struct {
	store  VendorStore
	lx     *lexicon.Lexicon
	logger *slog.Logger
}

func NewVendorResolver(store VendorStore, lx *lexicon.Lexicon, logger *slog.Logger) *VendorResolver {
	if logger == nil {
		logger = slog.Default()
	}
	if lx == nil {
		lx = lexicon.Default()
	}
	return &VendorResolver{store: store, lx: lx, logger: logger}
}

// Resolve matches by tax id first, then by name key. Returns nil when the
// header carries neither a name nor a tax id.
func (r *VendorResolver) Resolve(ctx context.Context, in entity.VendorIdentity) (*entity.VendorIdentity, error) {
	in.TaxID = strings.ToUpper(strings.TrimSpace(in.TaxID))
	in.CanonicalName = strings.TrimSpace(in.CanonicalName)
	key := NameKey(r.lx, in.CanonicalName)
	if in.TaxID == "" && key == "" {
		return nil, nil
	}

	existing, err := r.find(ctx, in.TaxID, key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		created, err := r.store.Create(ctx, &in, key)
		if err != nil {
			return nil, fmt.Errorf("create vendor: %w", err)
		}
		r.logger.Info("vendor created", "vendor_id", created.ID, "name", created.CanonicalName, "tax_id", created.TaxID)
		return created, nil
	}

	merged, changed := r.merge(*existing, in)
	if !changed {
		return existing, nil
	}
	updated, err := r.store.Update(ctx, &merged, NameKey(r.lx, merged.CanonicalName))
	if err != nil {
		return nil, fmt.Errorf("update vendor %s: %w", existing.ID, err)
	}
	r.logger.Info("vendor updated", "vendor_id", updated.ID, "name", updated.CanonicalName)
	return updated, nil
}

func (r *VendorResolver) find(ctx context.Context, taxID, key string) (*entity.VendorIdentity, error) {
	if taxID != "" {
		v, err := r.store.FindByTaxID(ctx, taxID)
		switch {
		case err == nil:
			return v, nil
		case !errors.Is(err, common.ErrNotFound):
			return nil, fmt.Errorf("find vendor by tax id: %w", err)
		}
	}
	if key != "" {
		v, err := r.store.FindByNameKey(ctx, key)
		switch {
		case err == nil:
			// a different registered tax id means a different vendor
			if taxID != "" && v.TaxID != "" && v.TaxID != taxID {
				return nil, nil
			}
			return v, nil
		case !errors.Is(err, common.ErrNotFound):
			return nil, fmt.Errorf("find vendor by name: %w", err)
		}
	}
	return nil, nil
}

// merge fills blanks on the stored record from the incoming one. The name is
// only replaced by a strictly more vendor-like one.
func (r *VendorResolver) merge(cur, in entity.VendorIdentity) (entity.VendorIdentity, bool) {
	changed := false
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" && strings.TrimSpace(src) != "" {
			*dst = src
			changed = true
		}
	}
	fill(&cur.TaxID, in.TaxID)
	fill(&cur.StateCode, in.StateCode)
	fill(&cur.Address, in.Address)
	fill(&cur.Phone, in.Phone)
	fill(&cur.Email, in.Email)
	fill(&cur.Source, in.Source)

	if r.betterName(cur.CanonicalName, in.CanonicalName) {
		cur.CanonicalName = in.CanonicalName
		changed = true
	}
	if in.Score > cur.Score {
		cur.Score = in.Score
		changed = true
	}
	return cur, changed
}

func (r *VendorResolver) betterName(cur, next string) bool {
	if next == "" || strings.EqualFold(cur, next) || r.lx.IsAddressLike(next) {
		return false
	}
	if cur == "" {
		return true
	}
	// an upgrade must carry at least one vendor-lexicon token
	if r.lx.VendorTokenCount(next) == 0 {
		return false
	}
	return r.lx.VendorLikeness(next) > r.lx.VendorLikeness(cur)
}
