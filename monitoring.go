package gridb

type TableStats struct {
	Rows    int
	Columns int
	Cells   int
}

// TableStats counts the rows and columns of a table with two seeks; every
// row has exactly one cell per column.
func (tx *Tx) TableStats(tbl TableID) (TableStats, error) {
	if err := tx.checkTable(tbl); err != nil {
		return TableStats{}, err
	}
	rows := rowAxis.count(tx, tbl)
	cols := columnAxis.count(tx, tbl)
	return TableStats{Rows: rows, Columns: cols, Cells: rows * cols}, nil
}

func (db *DB) TableStats(tbl TableID) (TableStats, error) {
	return view(db, func(tx *Tx) (TableStats, error) { return tx.TableStats(tbl) })
}

// BucketStats describes the storage used by one bucket.
type BucketStats struct {
	Name  string
	Keys  int
	Size  int64
	Alloc int64
}

// Stats reports storage usage of every bucket, in a fixed order.
func (tx *Tx) Stats() []BucketStats {
	result := make([]BucketStats, 0, len(allBuckets))
	for _, name := range allBuckets {
		bs := nonNil(tx.bucket(name)).Stats()
		result = append(result, BucketStats{
			Name:  name,
			Keys:  bs.KeyN,
			Size:  bs.LeafInuse,
			Alloc: bs.TotalAlloc(),
		})
	}
	return result
}

// FetchCounts counts collection reads since the database was opened: whole
// row or column lists, and per-row or per-column cell batches.
type FetchCounts struct {
	Rows    uint64
	Columns uint64
	Cells   uint64
}

func (db *DB) FetchCounts() FetchCounts {
	return FetchCounts{
		Rows:    db.rowFetches.Load(),
		Columns: db.columnFetches.Load(),
		Cells:   db.cellFetches.Load(),
	}
}
