/*
Package gridb stores spreadsheet-like tables on top of a transactional
key-value store (Bolt, or an in-memory store for tests).

A table has an ordered set of columns, each with a data type, and an ordered
set of rows, with a cell at every row and column intersection. Rows and
columns are two independent axes handled by one generic engine.

We maintain:

1. Dense indexes. For N rows, the row indexes in use are exactly 0..N-1,
and the same holds for columns, after every committed transaction.

2. Cell completeness. Creating a row creates an empty cell for every column
and vice versa; deleting a row or a column deletes its cells.

3. At least one row and one column per table. Operations that would empty an
axis fail and change nothing.

Every operation runs in one transaction. Bolt allows a single writer, so
structural edits are serialized, and readers work on snapshots that never
show a half-shifted axis.

# Technical Details

**Buckets.** All data lives in flat buckets with binary keys:

	tables        tableID                   → {CreatedAt, UpdatedAt}
	rows          rowID                     → {Table, Index}
	columns       columnID                  → {Table, Index, DataType, Name}
	row_pos       tableID + BE uint32 index → rowID
	column_pos    tableID + BE uint32 index → columnID
	cells         rowID + columnID          → {Value}
	cards         tableID                   → {Owner, Title, Description, ...}
	cards_recent  owner 0x00 ^updatedAt ID  → (empty)

IDs are random UUIDs stored as 16 raw bytes. Values are msgpack.

**Positions.** The position buckets are the source of truth for ordering.
A prefix scan over a table ID visits its rows (or columns) in index order,
and the last key under the prefix gives the count with a single seek. The
index is mirrored in the entity record so that id → index is a point read.

**Shifts.** Inserting at k moves the keys of [k, count) up by one, starting
from the highest, so no rewrite ever lands on an occupied key; deleting
moves the keys above the freed index down, starting from the lowest. Batch
deletes remove every entity first and then renumber the survivors in one
ascending pass.

**Lazy handles.** LoadTable reads only the table record. Rows and columns
are each fetched with one range scan on first access and cached on the
handle; Row(i) reads the cells of a single row.

**Journal.** With Options.JournalDir set, every committed write transaction
appends its Change records to an append-only checksummed journal (see the
journal package).
*/
package gridb
