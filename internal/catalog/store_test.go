package catalog

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// stubRow plays a single result row by copying canned column values into the
// scan destinations.
type stubRow struct {
	values []any
}

func (r stubRow) Scan(dest ...any) error {
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan expects %d destinations, got %d", len(r.values), len(dest))
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *uuid.UUID:
			*d = v.(uuid.UUID)
		case *string:
			*d = v.(string)
		case *int64:
			*d = v.(int64)
		case *int:
			*d = v.(int)
		case *[]byte:
			if v == nil {
				*d = nil
			} else {
				*d = v.([]byte)
			}
		case *[]uuid.UUID:
			if v == nil {
				*d = nil
			} else {
				*d = v.([]uuid.UUID)
			}
		default:
			return fmt.Errorf("unsupported scan destination %T", dest[i])
		}
	}
	return nil
}

func packageRow(included any) stubRow {
	return stubRow{values: []any{
		uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		"Towing Package",
		"utility",
		"Everything needed to pull a trailer.",
		int64(90_000),
		10,
		included,
		[]uuid.UUID{uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")},
	}}
}

func TestScanPackageDecodesIncludedOptionDocument(t *testing.T) {
	hitch := uuid.MustParse("99999999-0000-1111-2222-333333333333")
	controller := uuid.MustParse("88888888-0000-1111-2222-333333333333")
	doc := []byte(fmt.Sprintf(
		`[{"optionId":%q,"qty":1},{"optionId":%q,"qty":2}]`, hitch, controller,
	))

	p, err := scanPackage(packageRow(doc))
	require.NoError(t, err)
	require.Equal(t, "Towing Package", p.Name)
	require.Equal(t, []PackageOption{
		{OptionID: hitch, Qty: 1},
		{OptionID: controller, Qty: 2},
	}, p.IncludedOptions)
}

func TestScanPackageEmptyBundle(t *testing.T) {
	for _, raw := range []any{nil, []byte(`[]`)} {
		p, err := scanPackage(packageRow(raw))
		require.NoError(t, err)
		require.Empty(t, p.IncludedOptions)
	}
}

func TestScanPackageRejectsNonDocumentColumn(t *testing.T) {
	_, err := scanPackage(packageRow([]byte(`{99999999-0000-1111-2222-333333333333}`)))
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode included options")
}
