package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"nas-tidy/internal/catalog"
	"nas-tidy/internal/confirm"
	"nas-tidy/internal/dedup"
	"nas-tidy/internal/history"
	"nas-tidy/internal/index"
	"nas-tidy/internal/syncdata"
)

var (
	shareFlag string
	rootFlag  string
	rehash    bool

	lsType  string
	lsDepth int

	keepFlag  string
	dupesList bool

	belowFlag int64
	smallList bool

	pushLocal  string
	pushPath   string
	pushFolder string
	dropSmall  bool
	moveFiles  bool

	cleanupRebuild bool

	suffixFlag string

	historySearch string
	historyLimit  int
)

func rootFor(a *app) string {
	if rootFlag != "" {
		return rootFlag
	}
	if a.cfg.Cleanup.Root != "" {
		return a.cfg.Cleanup.Root
	}
	return "/"
}

// withCatalog opens the app and the catalog, loads the index and runs fn.
func withCatalog(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := openApp(shareFlag)
	if err != nil {
		return err
	}
	found, err := a.catalog.Open(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.catalog.Close(); err != nil {
			log.Printf("close failed: %v", err)
		}
	}()
	if !found {
		warnColor.Println("ℹ️  No index found, run 'nas-tidy index' to build one")
	}
	return fn(a)
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Update the content index of a share",
	Long: `Walk the share from --root and hash every file not already indexed.
Files already in the index keep their hash; use --rehash to read everything again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd, func(a *app) error {
			root := rootFor(a)
			fmt.Printf("🔍 Indexing %s:%s\n", a.catalog.Share(), root)
			idx, err := a.catalog.Rebuild(cmd.Context(), root, rehash)
			a.finishProgress()
			if err := warnSave(err); err != nil {
				return err
			}
			okColor.Printf("✅ %d file(s), %s indexed in %s\n", len(idx), humanize.IBytes(uint64(idx.TotalSize())), a.cfg.IndexPath())
			return nil
		})
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a share directory tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemType, err := index.ParseItemType(lsType)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		share := shareFlag
		if share == "" {
			share = cfg.Cleanup.Share
		}
		sess, err := newSession(cfg)
		if err != nil {
			return err
		}
		if err := sess.Connect(cmd.Context()); err != nil {
			return err
		}
		defer sess.Disconnect()
		root := "/"
		if len(args) == 1 {
			root = args[0]
		}
		paths, err := index.Traverse(cmd.Context(), sess, share, root, itemType, lsDepth)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

func printGroups(groups []dedup.Group) {
	var wasted int64
	for i, g := range groups {
		fmt.Printf("Group %d (%s):\n", i+1, g.Hash)
		for j, r := range g.Records {
			fmt.Printf("  %d. %s (Created on %s, Size: %s)\n", j+1, r.Path, confirm.FormatDate(r.CreationTime), humanize.IBytes(uint64(r.Size)))
		}
		wasted += g.Wasted()
	}
	fmt.Printf("%d duplicate group(s), %s reclaimable\n", len(groups), humanize.IBytes(uint64(wasted)))
}

func policyFor(a *app) (dedup.Policy, error) {
	keep := keepFlag
	if keep == "" {
		keep = a.cfg.Cleanup.Duplicates
	}
	if keep == "" || keep == "no" {
		keep = "older"
	}
	return dedup.ParsePolicy(keep)
}

var dupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "Delete duplicate files, keeping the older or newer copy",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd, func(a *app) error {
			policy, err := policyFor(a)
			if err != nil {
				return err
			}
			groups := a.catalog.Duplicates()
			if len(groups) == 0 {
				okColor.Println("✅ No duplicates found")
				return nil
			}
			printGroups(groups)
			if dupesList {
				return nil
			}

			results, err := a.catalog.ResolveDuplicates(cmd.Context(), policy)
			if results == nil && err == nil {
				fmt.Println("Nothing deleted")
				return nil
			}
			deleted, failed := 0, 0
			for _, r := range results {
				deleted += len(r.Deleted)
				failed += len(r.Failed)
			}
			if err := warnSave(err); err != nil {
				return err
			}
			okColor.Printf("✅ Deleted %d duplicate(s)", deleted)
			if failed > 0 {
				warnColor.Printf(", %d could not be deleted (see log)", failed)
			}
			fmt.Println()
			return nil
		})
	},
}

var smallCmd = &cobra.Command{
	Use:   "small",
	Short: "Delete (or list) files of at most --below bytes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd, func(a *app) error {
			limit := belowFlag
			if limit <= 0 {
				limit = a.cfg.Cleanup.MinSize
			}
			if limit <= 0 {
				return fmt.Errorf("no size limit: pass --below or set cleanup.min_size")
			}
			if smallList {
				small := a.catalog.ListSmall(limit)
				if len(small) == 0 {
					fmt.Printf("No files smaller than %d bytes found.\n", limit)
					return nil
				}
				fmt.Printf("Files smaller than %d bytes:\n", limit)
				for _, r := range small {
					fmt.Printf("%s (Size: %d bytes)\n", r.Path, r.Size)
				}
				return nil
			}
			out, err := a.catalog.DeleteSmall(cmd.Context(), limit)
			if err := warnSave(err); err != nil {
				return err
			}
			reportOutcome(len(out.Candidates), out.Confirmed, len(out.Deleted), len(out.Failed))
			return nil
		})
	},
}

var originalsCmd = &cobra.Command{
	Use:   "originals",
	Short: "Delete originals that have an upscaled copy next to them",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd, func(a *app) error {
			suffix := suffixFlag
			if suffix == "" {
				suffix = a.cfg.Upscale.Suffix
			}
			out, err := a.catalog.RemoveOriginals(cmd.Context(), suffix)
			if err := warnSave(err); err != nil {
				return err
			}
			reportOutcome(len(out.Candidates), out.Confirmed, len(out.Deleted), len(out.Failed))
			return nil
		})
	},
}

func reportOutcome(candidates int, confirmed bool, deleted, failed int) {
	switch {
	case candidates == 0:
		okColor.Println("✅ Nothing to delete")
	case !confirmed:
		fmt.Println("Nothing deleted")
	case failed > 0:
		warnColor.Printf("⚠️  Deleted %d file(s), %d could not be deleted (see log)\n", deleted, failed)
	default:
		okColor.Printf("✅ Deleted %d file(s)\n", deleted)
	}
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Copy or move a local folder into a share folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pushLocal == "" || pushFolder == "" {
			return fmt.Errorf("--local and --folder are required")
		}
		return withCatalog(cmd, func(a *app) error {
			rep, err := a.catalog.Push(cmd.Context(), syncdata.Options{
				LocalDir:           pushLocal,
				TargetPath:         pushPath,
				FolderName:         pushFolder,
				DropSmallFiles:     dropSmall,
				SmallFileThreshold: a.cfg.Sync.SmallFileThreshold,
				Move:               moveFiles,
			})
			a.finishProgress()
			verb := "Copied"
			if moveFiles {
				verb = "Moved"
			}
			fmt.Printf("%s %d file(s) to %s, %d skipped, %d dropped, %d failed\n",
				verb, len(rep.Uploaded), rep.Destination, len(rep.Skipped), len(rep.Dropped), len(rep.Failed))
			if len(rep.Skipped) > 0 {
				fmt.Printf("Already present: %s\n", strings.Join(rep.Skipped, ", "))
			}
			if len(rep.Ignored) > 0 {
				fmt.Printf("Ignored: %s\n", strings.Join(rep.Ignored, ", "))
			}
			return warnSave(err)
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run the cleanup configured in nas-tidy.yaml",
	Long: `Load the index (building it when missing or when cleanup.rebuild is set),
offer files of at most cleanup.min_size bytes for deletion and resolve
duplicates according to cleanup.duplicates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(shareFlag)
		if err != nil {
			return err
		}
		opts := catalog.CleanupOptions{
			Root:    rootFor(a),
			Rebuild: a.cfg.Cleanup.Rebuild || cleanupRebuild,
			MinSize: a.cfg.Cleanup.MinSize,
			Preview: printGroups,
		}
		if d := strings.ToLower(a.cfg.Cleanup.Duplicates); d == "older" || d == "newer" {
			policy, err := dedup.ParsePolicy(d)
			if err != nil {
				return err
			}
			opts.Duplicates = &policy
		}
		rep, err := a.catalog.Cleanup(cmd.Context(), opts)
		a.finishProgress()
		if err := warnSave(err); err != nil {
			return err
		}
		deleted := len(rep.Small.Deleted)
		for _, r := range rep.Duplicates {
			deleted += len(r.Deleted)
		}
		okColor.Printf("✅ Cleanup done: %d file(s) deleted, %d left in the index\n", deleted, rep.Records)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show files deleted by nas-tidy",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := history.Recent(historySearch, historyLimit)
		if len(entries) == 0 {
			fmt.Println("No deletions recorded.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %-10s %-8s %s:%s (%s)\n",
				e.Time.Local().Format("2006-01-02 15:04:05"), e.Reason, humanize.IBytes(uint64(e.Size)), e.Share, e.Path, humanize.Time(e.Time))
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{indexCmd, lsCmd, dupesCmd, smallCmd, originalsCmd, pushCmd, cleanupCmd} {
		c.Flags().StringVar(&shareFlag, "share", "", "share to work on (default cleanup.share)")
	}
	for _, c := range []*cobra.Command{indexCmd, cleanupCmd} {
		c.Flags().StringVar(&rootFlag, "root", "", "share folder to index (default cleanup.root)")
	}
	indexCmd.Flags().BoolVar(&rehash, "rehash", false, "hash every file again instead of reusing indexed hashes")

	lsCmd.Flags().StringVar(&lsType, "type", "both", "files, folders or both")
	lsCmd.Flags().IntVar(&lsDepth, "depth", index.Unlimited, "deepest folder level below the path whose contents are listed (0 for no limit)")

	dupesCmd.Flags().StringVar(&keepFlag, "keep", "", "older or newer (default cleanup.duplicates)")
	dupesCmd.Flags().BoolVar(&dupesList, "list", false, "only list duplicate groups")

	smallCmd.Flags().Int64Var(&belowFlag, "below", 0, "size limit in bytes (default cleanup.min_size)")
	smallCmd.Flags().BoolVar(&smallList, "list", false, "only list files strictly smaller than the limit")

	pushCmd.Flags().StringVar(&pushLocal, "local", "", "local folder to upload")
	pushCmd.Flags().StringVar(&pushPath, "path", "/", "share folder that holds the destination folder")
	pushCmd.Flags().StringVar(&pushFolder, "folder", "", "destination folder name, created when missing")
	pushCmd.Flags().BoolVar(&dropSmall, "drop-small", false, "delete local files below sync.small_file_threshold instead of uploading them")
	pushCmd.Flags().BoolVar(&moveFiles, "move", false, "delete local files after upload and then the local folder")

	cleanupCmd.Flags().BoolVar(&cleanupRebuild, "rebuild", false, "rebuild the index even when one was loaded")

	originalsCmd.Flags().StringVar(&suffixFlag, "suffix", "", "marker of upscaled files (default upscale.suffix)")

	historyCmd.Flags().StringVar(&historySearch, "search", "", "only show paths containing this text")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "number of entries to show (0 for all)")
}
