package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"assetline/internal/app"
	"assetline/internal/config"
	"assetline/internal/domain"
	"assetline/internal/pipeline"
	"assetline/internal/server"
	"assetline/internal/visibility"
)

var rootCmd = &cobra.Command{
	Use:   "al",
	Short: "Assetline CLI",
	Long: `Assetline tracks production assets through a per-stage workflow.
Each asset walks an ordered list of stages; a stage is locked until its
predecessor is done. Assignees push their own stage forward, reviewers
accept or bounce it back, and the administrator can do anything once
logged in. Every client works against the same shared store and the last
write wins.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ASSETLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor", "", "acting user (defaults to the configured admin user)")
	rootCmd.PersistentFlags().String("admin-secret", "", "administrator secret for admin operations")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
	_ = viper.BindPFlag("admin-secret", rootCmd.PersistentFlags().Lookup("admin-secret"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(assetCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(roleCmd())
	rootCmd.AddCommand(categoryCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(watchCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default assetline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			return os.WriteFile(path, []byte(config.GenerateDefault()), 0o644)
		},
	}
}

func assetCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "asset", Short: "Manage assets"}
	cmd.AddCommand(assetListCmd())
	cmd.AddCommand(assetShowCmd())
	cmd.AddCommand(assetCreateCmd())
	cmd.AddCommand(assetUpdateCmd())
	cmd.AddCommand(assetDeleteCmd())
	cmd.AddCommand(stageCmd())
	cmd.AddCommand(commentCmd())
	cmd.AddCommand(issueCmd())
	cmd.AddCommand(noteCmd())
	return cmd
}

func assetListCmd() *cobra.Command {
	var f visibility.Filter
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assets visible to the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				f.Status = domain.Status(status)
				items := a.Pipeline.View(f, currentActor(a))
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Category", "Status", "Issues", "Escalated"})
				for _, it := range items {
					flags := pipeline.AssetFlags(it.Asset)
					tw.AppendRow(table.Row{it.Asset.ID, it.Asset.Name, it.Asset.Category, it.Asset.Status, flags.ActiveIssues, it.Escalated})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Category, "category", "", "category filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Assignee, "assignee", "", "assignee filter")
	return cmd
}

func assetShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one asset with its derived flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				asset, err := a.Pipeline.Asset(id)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"asset": asset,
					"flags": pipeline.AssetFlags(asset),
				})
			})
		},
	}
	return cmd
}

func assetCreateCmd() *cobra.Command {
	var opts pipeline.CreateAssetOptions
	var deadline string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an asset (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				if cmd.Flags().Changed("deadline") {
					opts.Deadline = &deadline
				}
				if len(opts.Stages) == 0 {
					opts.Stages = a.Pipeline.Roles.Value()
				}
				asset, err := a.Pipeline.CreateAsset(ctx, currentActor(a), opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(asset)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "asset name")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Link, "link", "", "reference link")
	cmd.Flags().StringSliceVar(&opts.Stages, "stages", nil, "ordered stage list (defaults to all roles)")
	cmd.Flags().StringVar(&opts.AssignedTo, "assignee", "", "assignee for every stage")
	cmd.Flags().StringVar(&opts.Reviewer, "reviewer", "", "reviewer for every stage")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func assetUpdateCmd() *cobra.Command {
	var name, category, description, link, assignee, reviewer, deadline string
	var stages []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an asset (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				var opts pipeline.UpdateAssetOptions
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("category") {
					opts.Category = &category
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &description
				}
				if cmd.Flags().Changed("link") {
					opts.Link = &link
				}
				if cmd.Flags().Changed("stages") {
					opts.Stages = stages
				}
				if cmd.Flags().Changed("assignee") {
					opts.AssignedTo = &assignee
				}
				if cmd.Flags().Changed("reviewer") {
					opts.Reviewer = &reviewer
				}
				if cmd.Flags().Changed("deadline") {
					opts.SetDeadline = true
					if deadline != "" {
						opts.Deadline = &deadline
					}
				}
				asset, err := a.Pipeline.UpdateAsset(ctx, currentActor(a), id, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(asset)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "asset name")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&link, "link", "", "reference link")
	cmd.Flags().StringSliceVar(&stages, "stages", nil, "ordered stage list")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee for every stage")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer for every stage")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (YYYY-MM-DD, empty clears)")
	return cmd
}

func assetDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an asset (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				return a.Pipeline.DeleteAsset(ctx, currentActor(a), id)
			})
		},
	}
}

func stageCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "stage", Short: "Work one stage of an asset"}
	cmd.AddCommand(stageSetCmd())
	cmd.AddCommand(stageEditCmd())
	cmd.AddCommand(stageTargetsCmd())
	return cmd
}

func stageSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <id> <stage> <status>",
		Short: "Transition one stage",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				asset, err := a.Pipeline.SetStageStatus(ctx, currentActor(a), id, args[1], domain.Status(args[2]))
				if err != nil {
					return err
				}
				return printJSONOrTable(asset)
			})
		},
	}
	return cmd
}

func stageEditCmd() *cobra.Command {
	var assignee, reviewer, deadline string
	cmd := &cobra.Command{
		Use:   "edit <id> <stage>",
		Short: "Edit stage assignee, reviewer or deadline (admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				var edit pipeline.StageEdit
				if cmd.Flags().Changed("assignee") {
					edit.AssignedTo = &assignee
				}
				if cmd.Flags().Changed("reviewer") {
					edit.Reviewer = &reviewer
				}
				if cmd.Flags().Changed("deadline") {
					edit.SetDeadline = true
					if deadline != "" {
						edit.Deadline = &deadline
					}
				}
				asset, err := a.Pipeline.EditStage(ctx, currentActor(a), id, args[1], edit)
				if err != nil {
					return err
				}
				return printJSONOrTable(asset)
			})
		},
	}
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (YYYY-MM-DD, empty clears)")
	return cmd
}

func stageTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets <id> <stage>",
		Short: "Statuses the acting user may set on this stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				targets, err := a.Pipeline.AllowedTargets(currentActor(a), id, args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(targets)
			})
		},
	}
}

func commentCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "comment <id>",
		Short: "Comment on an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				return a.Pipeline.AddComment(ctx, currentActor(a), id, text)
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "comment text")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func issueCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "issue", Short: "Report and resolve issues"}

	var stage, description string
	report := &cobra.Command{
		Use:   "report <id>",
		Short: "Report an issue against one stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				return a.Pipeline.ReportIssue(ctx, currentActor(a), id, stage, description)
			})
		},
	}
	report.Flags().StringVar(&stage, "stage", "", "stage the issue is against")
	report.Flags().StringVar(&description, "description", "", "what is wrong")
	_ = report.MarkFlagRequired("stage")
	_ = report.MarkFlagRequired("description")

	resolve := &cobra.Command{
		Use:   "resolve <id> <index>",
		Short: "Resolve an issue by index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid issue index %q", args[1])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				return a.Pipeline.ResolveIssue(ctx, currentActor(a), id, index)
			})
		},
	}

	cmd.AddCommand(report)
	cmd.AddCommand(resolve)
	return cmd
}

func noteCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "note", Short: "Notes filed under an asset"}

	var text string
	add := &cobra.Command{
		Use:   "add <id>",
		Short: "File a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				return a.Pipeline.AddNote(ctx, currentActor(a), id, text)
			})
		},
	}
	add.Flags().StringVar(&text, "text", "", "note text")
	_ = add.MarkFlagRequired("text")

	var category string
	list := &cobra.Command{
		Use:   "list <id>",
		Short: "List notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				if _, err := a.Pipeline.Asset(id); err != nil {
					return err
				}
				return printJSONOrTable(a.Pipeline.NotesFor(id, category))
			})
		},
	}
	list.Flags().StringVar(&category, "category", "", "category filter")

	cmd.AddCommand(add)
	cmd.AddCommand(list)
	return cmd
}

func userCmd() *cobra.Command {
	return rosterCmd("user", "Manage users", func(a *app.Context) rosterFns {
		p := a.Pipeline
		return rosterFns{
			list:   func() []string { return p.Users.Value() },
			add:    p.AddUser,
			rename: p.RenameUser,
			remove: p.RemoveUser,
		}
	})
}

func roleCmd() *cobra.Command {
	return rosterCmd("role", "Manage roles (stage labels)", func(a *app.Context) rosterFns {
		p := a.Pipeline
		return rosterFns{
			list:   func() []string { return p.Roles.Value() },
			add:    p.AddRole,
			rename: p.RenameRole,
			remove: p.RemoveRole,
		}
	})
}

func categoryCmd() *cobra.Command {
	cmd := rosterCmd("category", "Manage categories", func(a *app.Context) rosterFns {
		p := a.Pipeline
		return rosterFns{
			list:   func() []string { return p.Categories.Value() },
			add:    p.AddCategory,
			remove: p.RemoveCategory,
		}
	})

	reorder := &cobra.Command{
		Use:   "reorder <name>...",
		Short: "Reorder categories and re-sort assets to match",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				return a.Pipeline.ReorderCategories(ctx, currentActor(a), args)
			})
		},
	}
	cmd.AddCommand(reorder)
	return cmd
}

type rosterFns struct {
	list   func() []string
	add    func(context.Context, pipeline.Actor, string) error
	rename func(context.Context, pipeline.Actor, string, string) error
	remove func(context.Context, pipeline.Actor, string) error
}

func rosterCmd(name, short string, fns func(*app.Context) rosterFns) *cobra.Command {
	cmd := &cobra.Command{Use: name, Short: short}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List " + name + "s",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				return printJSONOrTable(fns(a).list())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Add a " + name + " (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				return fns(a).add(ctx, currentActor(a), args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a " + name + " (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				return fns(a).remove(ctx, currentActor(a), args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <from> <to>",
		Short: "Rename a " + name + " (admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				f := fns(a)
				if f.rename == nil {
					return fmt.Errorf("%ss cannot be renamed", name)
				}
				return f.rename(ctx, currentActor(a), args[0], args[1])
			})
		},
	})

	return cmd
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify the administrator secret",
		Long: `Checks the --admin-secret flag (or ASSETLINE_ADMIN_SECRET) against the
configured secret. When a JWT secret is configured, also prints a bearer
token for the HTTP API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				if err := a.Pipeline.Login(viper.GetString("admin-secret")); err != nil {
					return err
				}
				fmt.Printf("logged in as %s\n", a.Pipeline.AdminID)
				jwtSecret := a.Config.Server.JWTSecret
				if env := os.Getenv("ASSETLINE_JWT_SECRET"); env != "" {
					jwtSecret = env
				}
				if jwtSecret != "" {
					token, err := server.MintToken(jwtSecret, a.Pipeline.AdminID, true, time.Now(), 12*time.Hour)
					if err != nil {
						return err
					}
					fmt.Println(token)
				}
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Client-local activity journal"}
	var n int
	log.AddCommand(&cobra.Command{
		Use:   "tail",
		Short: "Tail recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				return printJSONOrTable(a.Pipeline.Events.Recent(n))
			})
		},
	})
	log.PersistentFlags().IntVar(&n, "n", 20, "number of events")
	return log
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			a, err := app.Open(cmd.Context(), workspace, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr == "" {
				addr = a.Config.Server.Addr
			}
			if basePath == "" {
				basePath = a.Config.Server.BasePath
			}
			jwtSecret := a.Config.Server.JWTSecret
			if env := os.Getenv("ASSETLINE_JWT_SECRET"); env != "" {
				jwtSecret = env
			}
			if jwtSecret == "" {
				return fmt.Errorf("ASSETLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				Pipeline: a.Pipeline,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: jwtSecret, AllowActorHeader: true},
			})
			if err != nil {
				return err
			}
			go func() {
				if err := a.Pipeline.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
					fmt.Println("watch:", err)
				}
			}()
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Assetline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow changes made by other clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				a.Pipeline.SetOnRemote(func(key string) {
					fmt.Printf("%s changed by another client\n", key)
				})
				err := a.Pipeline.Run(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.Context) error) error {
	a, err := app.Open(ctx, viper.GetString("workspace"), nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// currentActor resolves the --actor and --admin-secret flags into an
// acting identity. Admin holds only for the configured admin user with
// the right secret.
func currentActor(a *app.Context) pipeline.Actor {
	actor := viper.GetString("actor")
	if actor == "" {
		actor = a.Pipeline.AdminID
	}
	admin := actor == a.Pipeline.AdminID && a.Pipeline.CheckSecret(viper.GetString("admin-secret"))
	return pipeline.Actor{ID: actor, Admin: admin}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid asset id %q", s)
	}
	return id, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
