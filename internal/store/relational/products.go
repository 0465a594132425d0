package relational

import (
	"context"
	"database/sql"
	"iter"

	"github.com/bimatlas/core/internal/diff"
	"github.com/bimatlas/core/internal/types"
)

// OpenRows returns the currently-open (global_id, content_hash) rows for
// branchID, for the Diff Engine (spec.md §4.3 step 3).
func (s *Store) OpenRows(ctx context.Context, branchID int64) ([]diff.OpenRow, error) {
	rows, err := s.query(ctx, `
		SELECT global_id, content_hash FROM ifc_products
		WHERE branch_id = $1 AND valid_to_rev IS NULL`, branchID)
	if err != nil {
		return nil, types.WrapStoreError("list open rows", err)
	}
	defer rows.Close()

	var out []diff.OpenRow
	for rows.Next() {
		var r diff.OpenRow
		if err := rows.Scan(&r.GlobalID, &r.ContentHash); err != nil {
			return nil, types.WrapStoreError("scan open row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CloseOpenRow sets valid_to_rev = rev on branchID's currently-open row for
// globalID (spec.md §4.3 step 4). Asserts the open-window invariant held
// beforehand by requiring exactly one row to be affected.
func (s *Store) CloseOpenRow(ctx context.Context, tx *sql.Tx, branchID int64, globalID types.GlobalID, rev int64) error {
	res, err := s.execTx(ctx, tx, `
		UPDATE ifc_products SET valid_to_rev = $1
		WHERE branch_id = $2 AND global_id = $3 AND valid_to_rev IS NULL`, rev, branchID, globalID)
	if err != nil {
		return types.WrapStoreError("close open row", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.WrapStoreError("close open row", err)
	}
	if n != 1 {
		return types.WrapStoreError("close open row", sql.ErrNoRows)
	}
	return nil
}

// InsertProductRow inserts a new open row (valid_from_rev = rev,
// valid_to_rev = null) for pr on branchID (spec.md §4.3 step 5).
func (s *Store) InsertProductRow(ctx context.Context, tx *sql.Tx, branchID int64, pr types.ProductRecord, rev int64) error {
	_, err := s.execTx(ctx, tx, `
		INSERT INTO ifc_products
			(branch_id, global_id, ifc_class, name, description, object_type, tag,
			 contained_in, vertices, normals, faces, matrix, content_hash,
			 valid_from_rev, valid_to_rev)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NULL)`,
		branchID, pr.GlobalID, pr.IfcClass, pr.Name, pr.Description, pr.ObjectType, pr.Tag,
		pr.ContainedIn, pr.Vertices, pr.Normals, pr.Faces, pr.Matrix, pr.ContentHash, rev)
	if err != nil {
		return types.WrapStoreError("insert product row", err)
	}
	return nil
}

const productColumns = `id, branch_id, global_id, ifc_class, name, description, object_type, tag,
	contained_in, vertices, normals, faces, matrix, content_hash, valid_from_rev, valid_to_rev`

func scanProduct(row interface {
	Scan(dest ...any) error
}) (types.Product, error) {
	var p types.Product
	var containedIn sql.NullString
	var validTo sql.NullInt64
	err := row.Scan(&p.SurrogateID, &p.BranchID, &p.GlobalID, &p.IfcClass, &p.Name, &p.Description,
		&p.ObjectType, &p.Tag, &containedIn, &p.Vertices, &p.Normals, &p.Faces, &p.Matrix,
		&p.ContentHash, &p.ValidFromRev, &validTo)
	if err != nil {
		return types.Product{}, err
	}
	if containedIn.Valid {
		g := types.GlobalID(containedIn.String)
		p.ContainedIn = &g
	}
	if validTo.Valid {
		v := validTo.Int64
		p.ValidToRev = &v
	}
	return p, nil
}

// ProductAt returns the product row visible at (branchID, rev) for
// globalID, per the visibility invariant in spec.md §3. Returns ErrNotFound
// if no row is visible.
func (s *Store) ProductAt(ctx context.Context, branchID int64, globalID types.GlobalID, rev int64) (types.Product, error) {
	row := s.queryRow(ctx, `
		SELECT `+productColumns+` FROM ifc_products
		WHERE branch_id = $1 AND global_id = $2
		  AND valid_from_rev <= $3 AND (valid_to_rev IS NULL OR valid_to_rev > $3)`,
		branchID, globalID, rev)
	p, err := scanProduct(row)
	if err != nil {
		return types.Product{}, types.WrapStoreError("product at revision", err)
	}
	return p, nil
}

// ProductFilter narrows the Products query (spec.md §4.5). IfcClasses, when
// non-empty, is already expanded to include descendants by the Query Layer.
type ProductFilter struct {
	IfcClasses    []types.IfcClass
	ContainedIn   *types.GlobalID
	SubstringText string // matched against name/object_type/tag/description
}

// Products returns every product row visible at (branchID, rev) matching
// every supplied predicate in filter (spec.md §4.5: "Returns rows matching
// all supplied predicates").
func (s *Store) Products(ctx context.Context, branchID int64, rev int64, filter ProductFilter) ([]types.Product, error) {
	query, args := buildProductsQuery(branchID, rev, filter)
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, types.WrapStoreError("query products", err)
	}
	defer rows.Close()

	var out []types.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, types.WrapStoreError("scan product", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClosedAtRevision returns the (global_id -> ifc_class) of every row whose
// validity window was just closed at rev on branchID. Used by the graph
// mirror step (spec.md §4.3 step 7a) to recover the label of a deleted or
// superseded product after its relational row has already been closed.
func (s *Store) ClosedAtRevision(ctx context.Context, branchID int64, rev int64) (map[types.GlobalID]types.IfcClass, error) {
	rows, err := s.query(ctx, `
		SELECT global_id, ifc_class FROM ifc_products
		WHERE branch_id = $1 AND valid_to_rev = $2`, branchID, rev)
	if err != nil {
		return nil, types.WrapStoreError("closed at revision", err)
	}
	defer rows.Close()

	out := make(map[types.GlobalID]types.IfcClass)
	for rows.Next() {
		var gid types.GlobalID
		var class types.IfcClass
		if err := rows.Scan(&gid, &class); err != nil {
			return nil, types.WrapStoreError("scan closed row", err)
		}
		out[gid] = class
	}
	return out, rows.Err()
}

// ProductsIter is the streaming counterpart to Products: it runs the same
// query but returns an iter.Seq2 over *sql.Rows instead of a materialized
// slice, so a caller (the Streaming Layer) can write one row at a time
// without holding the whole result set in memory (spec.md §4.6: "the
// producer must not buffer the whole result set"). The returned sequence
// must be fully drained or abandoned by breaking out of a range loop, which
// closes the underlying *sql.Rows via the deferred close in the yield loop.
func (s *Store) ProductsIter(ctx context.Context, branchID int64, rev int64, filter ProductFilter) (iter.Seq2[types.Product, error], int, error) {
	count, err := s.countProducts(ctx, branchID, rev, filter)
	if err != nil {
		return nil, 0, err
	}

	query, args := buildProductsQuery(branchID, rev, filter)
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, 0, types.WrapStoreError("query products", err)
	}

	seq := func(yield func(types.Product, error) bool) {
		defer rows.Close()
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				yield(types.Product{}, types.WrapStoreError("scan product", err))
				return
			}
			if !yield(p, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(types.Product{}, types.WrapStoreError("iterate products", err))
		}
	}
	return seq, count, nil
}

func (s *Store) countProducts(ctx context.Context, branchID int64, rev int64, filter ProductFilter) (int, error) {
	query, args := buildProductsQuery(branchID, rev, filter)
	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS matched"
	var n int
	if err := s.queryRow(ctx, countQuery, args...).Scan(&n); err != nil {
		return 0, types.WrapStoreError("count products", err)
	}
	return n, nil
}

func buildProductsQuery(branchID int64, rev int64, filter ProductFilter) (string, []any) {
	query := `SELECT ` + productColumns + ` FROM ifc_products WHERE branch_id = $1
		AND valid_from_rev <= $2 AND (valid_to_rev IS NULL OR valid_to_rev > $2)`
	args := []any{branchID, rev}
	argN := 3
	if len(filter.IfcClasses) > 0 {
		placeholders := ""
		for i, c := range filter.IfcClasses {
			if i > 0 {
				placeholders += ","
			}
			placeholders += placeholderFor(argN)
			args = append(args, c)
			argN++
		}
		query += ` AND ifc_class IN (` + placeholders + `)`
	}
	if filter.ContainedIn != nil {
		query += ` AND contained_in = ` + placeholderFor(argN)
		args = append(args, *filter.ContainedIn)
		argN++
	}
	if filter.SubstringText != "" {
		needle := "%" + filter.SubstringText + "%"
		p := placeholderFor(argN)
		query += ` AND (name LIKE ` + p + ` OR object_type LIKE ` + p + ` OR tag LIKE ` + p + ` OR description LIKE ` + p + `)`
		args = append(args, needle)
		argN++
	}
	return query, args
}

func placeholderFor(n int) string {
	return "$" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
