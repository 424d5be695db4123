package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/smartchr/internal/mappingfile"
	"github.com/verte-zerg/smartchr/internal/model"
	"github.com/verte-zerg/smartchr/internal/store"
)

var (
	addKey        string
	addCandidates []string
	addMode       string
	addFileTypes  []string
	addDisabled   bool
)

// mappingRepo is the editable mapping list behind --source.
type mappingRepo interface {
	List(ctx context.Context) ([]model.Mapping, error)
	Add(ctx context.Context, m model.Mapping) error
	Set(ctx context.Context, mappings []model.Mapping) error
	Remove(ctx context.Context, index int) (bool, error)
	Reset(ctx context.Context) error
	Close() error
}

type storeRepo struct {
	st *store.Store
}

func (r storeRepo) List(ctx context.Context) ([]model.Mapping, error) {
	return r.st.ListMappings(ctx)
}

func (r storeRepo) Add(ctx context.Context, m model.Mapping) error {
	return r.st.AddMapping(ctx, m)
}

func (r storeRepo) Set(ctx context.Context, mappings []model.Mapping) error {
	return r.st.SetMappings(ctx, mappings)
}

func (r storeRepo) Remove(ctx context.Context, index int) (bool, error) {
	return r.st.RemoveMapping(ctx, index)
}

func (r storeRepo) Reset(ctx context.Context) error {
	return r.st.ResetMappings(ctx)
}

func (r storeRepo) Close() error {
	return r.st.Close()
}

type fileRepo struct {
	path string
}

func (r fileRepo) List(_ context.Context) ([]model.Mapping, error) {
	mappings, err := mappingfile.Load(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return mappings, err
}

func (r fileRepo) Add(ctx context.Context, m model.Mapping) error {
	mappings, err := r.List(ctx)
	if err != nil {
		return err
	}
	return mappingfile.Save(r.path, append(mappings, m))
}

func (r fileRepo) Set(_ context.Context, mappings []model.Mapping) error {
	return mappingfile.Save(r.path, mappings)
}

func (r fileRepo) Remove(ctx context.Context, index int) (bool, error) {
	mappings, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	if index < 0 || index >= len(mappings) {
		return false, nil
	}
	mappings = append(mappings[:index], mappings[index+1:]...)
	return true, mappingfile.Save(r.path, mappings)
}

func (r fileRepo) Reset(_ context.Context) error {
	return mappingfile.CreateDefault(r.path)
}

func (r fileRepo) Close() error { return nil }

func openRepo() (mappingRepo, error) {
	if editSource == sourceStore {
		st, err := openStore()
		if err != nil {
			return nil, err
		}
		return storeRepo{st: st}, nil
	}
	return fileRepo{path: editMappings}, nil
}

// withRepo loads settings, opens the configured repo and runs fn.
func withRepo(cmd *cobra.Command, fn func(ctx context.Context, repo mappingRepo) error) error {
	if err := loadSettings(cmd); err != nil {
		return err
	}
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := repo.Close(); cerr != nil {
			logErrf("failed to close %s source: %v\n", editSource, cerr)
		}
	}()
	return fn(cmd.Context(), repo)
}

func newMappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Manage cycling mappings",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List mappings",
		Args:  cobra.NoArgs,
		RunE:  runMappingsList,
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Append a mapping",
		Args:  cobra.NoArgs,
		RunE:  runMappingsAdd,
	}
	addCmd.Flags().StringVar(&addKey, "key", "", "trigger character")
	addCmd.Flags().StringArrayVar(&addCandidates, "candidate", nil, "candidate text (repeat in cycling order)")
	addCmd.Flags().StringVar(&addMode, "mode", model.Loop.String(), "cycle mode (LOOP, ONE_OF)")
	addCmd.Flags().StringSliceVar(&addFileTypes, "file-types", nil, "contexts the mapping applies to (default: *)")
	addCmd.Flags().BoolVar(&addDisabled, "disabled", false, "store the mapping disabled")

	removeCmd := &cobra.Command{
		Use:   "remove <index>",
		Short: "Remove the mapping at index (see list)",
		Args:  cobra.ExactArgs(1),
		RunE:  runMappingsRemove,
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove every mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepo(cmd, func(ctx context.Context, repo mappingRepo) error {
				if err := repo.Reset(ctx); err != nil {
					return fmt.Errorf("failed to reset mappings: %w", err)
				}
				return nil
			})
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Replace mappings with the contents of a mapping file",
		Args:  cobra.ExactArgs(1),
		RunE:  runMappingsImport,
	}

	exportCmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Write mappings to a file (format from extension)",
		Args:  cobra.ExactArgs(1),
		RunE:  runMappingsExport,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the mapping file from stored settings if it does not exist",
		Args:  cobra.NoArgs,
		RunE:  runMappingsMigrate,
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of mapping files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := cmd.OutOrStdout().Write(mappingfile.SchemaJSON()); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			return nil
		},
	}

	cmd.AddCommand(listCmd, addCmd, removeCmd, resetCmd, importCmd, exportCmd, migrateCmd, schemaCmd)
	return cmd
}

func runMappingsList(cmd *cobra.Command, _ []string) error {
	return withRepo(cmd, func(ctx context.Context, repo mappingRepo) error {
		mappings, err := repo.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list mappings: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(mappings) == 0 {
			_, err := fmt.Fprintln(out, "No mappings.")
			return err
		}
		for i, m := range mappings {
			if _, err := fmt.Fprintln(out, formatMapping(i, m)); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		return nil
	})
}

func formatMapping(index int, m model.Mapping) string {
	quoted := make([]string, 0, m.Len())
	for _, c := range m.Candidates() {
		quoted = append(quoted, strconv.Quote(c))
	}
	state := ""
	if !m.Enabled() {
		state = " (disabled)"
	}
	return fmt.Sprintf("%d: %q %s [%s] in %s%s",
		index,
		string(m.Trigger()),
		m.Mode(),
		strings.Join(quoted, ", "),
		strings.Join(m.Contexts(), ","),
		state,
	)
}

func runMappingsAdd(cmd *cobra.Command, _ []string) error {
	rec := mappingfile.Record{
		Key:        addKey,
		Candidates: addCandidates,
		Mode:       addMode,
		FileTypes:  addFileTypes,
	}
	enabled := !addDisabled
	rec.Enabled = &enabled
	m, err := rec.Mapping()
	if err != nil {
		return err
	}
	return withRepo(cmd, func(ctx context.Context, repo mappingRepo) error {
		if err := repo.Add(ctx, m); err != nil {
			return fmt.Errorf("failed to add mapping: %w", err)
		}
		return nil
	})
}

func runMappingsRemove(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[0], err)
	}
	return withRepo(cmd, func(ctx context.Context, repo mappingRepo) error {
		removed, err := repo.Remove(ctx, index)
		if err != nil {
			return fmt.Errorf("failed to remove mapping: %w", err)
		}
		if !removed {
			logErrf("no mapping at index %d\n", index)
		}
		return nil
	})
}

func runMappingsImport(cmd *cobra.Command, args []string) error {
	mappings, err := mappingfile.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to import mappings: %w", err)
	}
	return withRepo(cmd, func(ctx context.Context, repo mappingRepo) error {
		if err := repo.Set(ctx, mappings); err != nil {
			return fmt.Errorf("failed to store mappings: %w", err)
		}
		logErrf("Imported %d mappings\n", len(mappings))
		return nil
	})
}

func runMappingsExport(cmd *cobra.Command, args []string) error {
	return withRepo(cmd, func(ctx context.Context, repo mappingRepo) error {
		mappings, err := repo.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list mappings: %w", err)
		}
		if err := mappingfile.Save(args[0], mappings); err != nil {
			return fmt.Errorf("failed to export mappings: %w", err)
		}
		logErrf("Wrote %s\n", args[0])
		return nil
	})
}

func runMappingsMigrate(cmd *cobra.Command, _ []string) error {
	if err := loadSettings(cmd); err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	stored, err := st.ListMappings(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list stored mappings: %w", err)
	}
	written, err := mappingfile.Migrate(editMappings, stored)
	if err != nil {
		return fmt.Errorf("failed to migrate mappings: %w", err)
	}
	if !written {
		logErrln("Mapping file already exists:", editMappings)
		return nil
	}
	logErrf("Wrote %s (%d mappings)\n", editMappings, len(stored))
	return nil
}
