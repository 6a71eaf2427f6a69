package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andreyvit/gridb"
	"github.com/andreyvit/gridb/sheetio"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"
)

const timeFormat = "2006-01-02 15:04:05"

func newCmd() *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a table with one row and one column",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var tbl gridb.TableID
			if owner != "" {
				card, err := db.CreateCard(owner, gridb.CardSpec{Title: title, Description: description})
				if err != nil {
					return err
				}
				tbl = card.Table
			} else {
				var err error
				tbl, err = db.CreateTable()
				if err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), tbl)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Card title (with --owner)")
	cmd.Flags().StringVar(&description, "description", "", "Card description (with --owner)")
	return cmd
}

func lsCmd() *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List tables, or the owner's cards newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if owner == "" {
				tables, err := db.Tables()
				if err != nil {
					return err
				}
				for _, t := range tables {
					fmt.Fprintf(w, "%v  %s\n", t.ID, t.UpdatedAt.Format(timeFormat))
				}
				return nil
			}
			cards, err := db.Cards(owner, page, pageSize)
			if err != nil {
				return err
			}
			for _, c := range cards {
				fmt.Fprintf(w, "%v  %s  %s\n", c.Table, c.UpdatedAt.Format(timeFormat), c.Title)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "Page number, starting at zero")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Cards per page (default: all)")
	return cmd
}

func showCmd() *cobra.Command {
	var ids bool
	cmd := &cobra.Command{
		Use:   "show TABLE",
		Short: "Print a table as a text grid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := parseTable(args[0])
			if err != nil {
				return err
			}
			flags := gridb.DumpAll
			if ids {
				flags |= gridb.DumpIDs
			}
			s, err := db.DumpTable(tbl, flags)
			if err != nil {
				return err
			}
			io.WriteString(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ids, "ids", false, "Include row and column ids")
	return cmd
}

func addRowCmd() *cobra.Command {
	var at int
	cmd := &cobra.Command{
		Use:   "add-row TABLE",
		Short: "Append a row, or insert it at --at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := parseTable(args[0])
			if err != nil {
				return err
			}
			var ref gridb.RowRef
			if cmd.Flags().Changed("at") {
				ref, err = db.InsertRow(tbl, at)
			} else {
				ref, err = db.AppendRow(tbl)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "row %d %v\n", ref.Index, ref.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&at, "at", 0, "Insert position")
	return cmd
}

func addColCmd() *cobra.Command {
	var at int
	var name, typeName string
	cmd := &cobra.Command{
		Use:   "add-col TABLE",
		Short: "Append a column, or insert it at --at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := parseTable(args[0])
			if err != nil {
				return err
			}
			dt, err := gridb.DataTypeNamed(typeName)
			if err != nil {
				return err
			}
			spec := gridb.ColumnSpec{Name: name, DataType: dt}
			var ref gridb.ColumnRef
			if cmd.Flags().Changed("at") {
				ref, err = db.InsertColumn(tbl, at, spec)
			} else {
				ref, err = db.AppendColumn(tbl, spec)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "column %d %v\n", ref.Index, ref.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&at, "at", 0, "Insert position")
	cmd.Flags().StringVar(&name, "name", "", "Column name")
	cmd.Flags().StringVar(&typeName, "type", gridb.Textual.String(), "Data type: "+dataTypeList())
	return cmd
}

func dataTypeList() string {
	var names []string
	for _, dt := range gridb.DataTypes() {
		names = append(names, strings.ToLower(dt.String()))
	}
	return strings.Join(names, ", ")
}

func rmRowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm-rows TABLE INDEX...",
		Short: "Delete rows by index",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := parseTable(args[0])
			if err != nil {
				return err
			}
			indexes, err := parseIndexes(args[1:])
			if err != nil {
				return err
			}
			var freed []int
			err = db.Tx(true, func(tx *gridb.Tx) error {
				ids := make([]gridb.RowID, 0, len(indexes))
				for _, i := range indexes {
					id, err := tx.RowIDAt(tbl, i)
					if err != nil {
						return err
					}
					ids = append(ids, id)
				}
				freed, err = tx.DeleteRows(tbl, ids)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "freed %v\n", freed)
			return nil
		},
	}
}

func rmColsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm-cols TABLE INDEX...",
		Short: "Delete columns by index",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := parseTable(args[0])
			if err != nil {
				return err
			}
			indexes, err := parseIndexes(args[1:])
			if err != nil {
				return err
			}
			var freed []int
			err = db.Tx(true, func(tx *gridb.Tx) error {
				ids := make([]gridb.ColumnID, 0, len(indexes))
				for _, i := range indexes {
					id, err := tx.ColumnIDAt(tbl, i)
					if err != nil {
						return err
					}
					ids = append(ids, id)
				}
				freed, err = tx.DeleteColumns(tbl, ids)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "freed %v\n", freed)
			return nil
		},
	}
}

func moveRowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move-row TABLE FROM TO",
		Short: "Move the row at FROM to index TO",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := parseTable(args[0])
			if err != nil {
				return err
			}
			indexes, err := parseIndexes(args[1:])
			if err != nil {
				return err
			}
			return db.Tx(true, func(tx *gridb.Tx) error {
				id, err := tx.RowIDAt(tbl, indexes[0])
				if err != nil {
					return err
				}
				return tx.MoveRow(tbl, id, indexes[1])
			})
		},
	}
}

func moveColCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move-col TABLE FROM TO",
		Short: "Move the column at FROM to index TO",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := parseTable(args[0])
			if err != nil {
				return err
			}
			indexes, err := parseIndexes(args[1:])
			if err != nil {
				return err
			}
			return db.Tx(true, func(tx *gridb.Tx) error {
				id, err := tx.ColumnIDAt(tbl, indexes[0])
				if err != nil {
					return err
				}
				return tx.MoveColumn(tbl, id, indexes[1])
			})
		},
	}
}

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set TABLE ROW COL VALUE",
		Short: "Set the value of the cell at ROW, COL",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := parseTable(args[0])
			if err != nil {
				return err
			}
			indexes, err := parseIndexes(args[1:3])
			if err != nil {
				return err
			}
			_, err = db.UpdateCellAt(tbl, indexes[0], indexes[1], args[3])
			return err
		},
	}
}

func patchColCmd() *cobra.Command {
	var name, typeName string
	var to int
	cmd := &cobra.Command{
		Use:   "patch-col TABLE INDEX",
		Short: "Rename, retype or move a column; retyping blanks its cells",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := parseTable(args[0])
			if err != nil {
				return err
			}
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			var patch gridb.ColumnPatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("type") {
				dt, err := gridb.DataTypeNamed(typeName)
				if err != nil {
					return err
				}
				patch.DataType = &dt
			}
			if cmd.Flags().Changed("to") {
				patch.Index = &to
			}
			var col gridb.Column
			err = db.Tx(true, func(tx *gridb.Tx) error {
				id, err := tx.ColumnIDAt(tbl, index)
				if err != nil {
					return err
				}
				col, err = tx.PatchColumn(tbl, id, patch)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "column %d %q %s\n", col.Index, col.Name, col.DataType)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&typeName, "type", "", "New data type: "+dataTypeList())
	cmd.Flags().IntVar(&to, "to", 0, "New index")
	return cmd
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm TABLE",
		Short: "Delete a table with all its rows, columns, cells and card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := parseTable(args[0])
			if err != nil {
				return err
			}
			return db.DeleteTable(tbl)
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [TABLE]",
		Short: "Print table sizes, or storage usage per bucket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 1 {
				tbl, err := parseTable(args[0])
				if err != nil {
					return err
				}
				st, err := db.TableStats(tbl)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "rows = %d, columns = %d, cells = %d\n", st.Rows, st.Columns, st.Cells)
				return nil
			}
			db.Read(func(tx *gridb.Tx) {
				for _, bs := range tx.Stats() {
					fmt.Fprintf(w, "%-14s keys = %d, size = %d, alloc = %d\n", bs.Name, bs.Keys, bs.Size, bs.Alloc)
				}
			})
			fmt.Fprintf(w, "file size = %d\n", db.Size())
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var sheet string
	var header bool
	cmd := &cobra.Command{
		Use:   "export TABLE FILE.xlsx",
		Short: "Write a table to an XLSX workbook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := parseTable(args[0])
			if err != nil {
				return err
			}
			content, err := db.TableContent(tbl)
			if err != nil {
				return err
			}
			f, err := sheetio.Export(content, sheetio.ExportOptions{SheetName: sheet, Header: header})
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			defer f.Close()
			if err := f.SaveAs(args[1]); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet name (default: Sheet1)")
	cmd.Flags().BoolVar(&header, "header", true, "Write column names as the first row")
	return cmd
}

func importCmd() *cobra.Command {
	var sheet, title string
	var header bool
	cmd := &cobra.Command{
		Use:   "import FILE.xlsx",
		Short: "Create a table from a sheet of an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath := args[0]
			if _, err := os.Stat(inputPath); os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", inputPath)
			}
			f, err := excelize.OpenFile(inputPath)
			if err != nil {
				return err
			}
			defer f.Close()

			opts := sheetio.ImportOptions{
				SheetName: sheet,
				Header:    header,
				Owner:     owner,
				Title:     title,
			}
			var imp sheetio.Imported
			err = db.Tx(true, func(tx *gridb.Tx) error {
				imp, err = sheetio.Import(tx, f, opts)
				return err
			})
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v  %d rows, %d columns\n", imp.Table, imp.Rows, imp.Columns)
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (default: first)")
	cmd.Flags().BoolVar(&header, "header", true, "Take column names from the first row")
	cmd.Flags().StringVar(&title, "title", "", "Card title (with --owner)")
	return cmd
}

func journalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "journal",
		Short: "Print the committed entries of the edit journal",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if journalDir == "" {
				return fmt.Errorf("--journal is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			return gridb.ReadJournal(journalDir, nil, func(entry *gridb.JournalEntry) error {
				fmt.Fprintln(w, entry.Time.Format(timeFormat))
				for _, chg := range entry.Changes {
					fmt.Fprintf(w, "  %v\n", chg)
				}
				return nil
			})
		},
	}
}
