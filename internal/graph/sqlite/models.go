package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/path"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// read helpers work both inside and outside transactions.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

// nodeColumns is the list of columns to select for node queries.
const nodeColumns = `id, uuid, parent_id, name_ns, name_local, sns_index, position, type_ns, type_local`

// nodeRow is the database row for the nodes table. The node's path is never
// stored; it is derived by walking parent_id to the root.
type nodeRow struct {
	id          int64
	uuid        uuid.UUID
	parentID    sql.NullInt64
	name        path.Name
	index       int
	position    int
	primaryType path.Name
}

func (r *nodeRow) segment() path.Segment {
	return path.NewSegment(r.name, r.index)
}

// scanNode scans a row into a nodeRow.
func scanNode(scanner interface{ Scan(...any) error }) (*nodeRow, error) {
	var row nodeRow
	var id string
	err := scanner.Scan(
		&row.id, &id, &row.parentID,
		&row.name.Namespace, &row.name.Local,
		&row.index, &row.position,
		&row.primaryType.Namespace, &row.primaryType.Local,
	)
	if err != nil {
		return nil, err
	}
	row.uuid, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("node %d has a malformed uuid: %w", row.id, err)
	}
	return &row, nil
}

// encodeValues serializes property values as a JSON array.
func encodeValues(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode property values: %w", err)
	}
	return string(data), nil
}

func decodeValues(data string) ([]string, error) {
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("failed to decode property values: %w", err)
	}
	return values, nil
}

// scanProperties reads the properties of a node in insertion order.
func scanProperties(q querier, nodeID int64) ([]graph.Property, error) {
	rows, err := q.Query(
		`SELECT name_ns, name_local, prop_type, multi, vals FROM properties WHERE node_id = ? ORDER BY id`,
		nodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var props []graph.Property
	for rows.Next() {
		var prop graph.Property
		var typeTag, vals string
		if err := rows.Scan(&prop.Name.Namespace, &prop.Name.Local, &typeTag, &prop.Multi, &vals); err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		prop.Type = graph.ParsePropertyType(typeTag)
		if prop.Values, err = decodeValues(vals); err != nil {
			return nil, err
		}
		props = append(props, prop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating property rows: %w", err)
	}
	return props, nil
}
