package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	transfertypes "github.com/aws/aws-sdk-go-v2/service/transfer/types"
	"github.com/spf13/cobra"

	lakeaws "github.com/nicholasgasior/lakegate/internal/aws"
	"github.com/nicholasgasior/lakegate/internal/cli"
	"github.com/nicholasgasior/lakegate/internal/config"
	"github.com/nicholasgasior/lakegate/internal/identity"
	"github.com/nicholasgasior/lakegate/internal/progress"
	"github.com/nicholasgasior/lakegate/internal/tags"
	"github.com/nicholasgasior/lakegate/internal/transfer"
)

func newServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage SFTP transfer servers",
	}
	cmd.AddCommand(newServerCreateCommand())
	cmd.AddCommand(newServerStartCommand())
	cmd.AddCommand(newServerStopCommand())
	cmd.AddCommand(newServerStatusCommand())
	return cmd
}

// resolveServerID returns the explicit ID when given, otherwise the ID
// persisted by the last `server create`.
func resolveServerID(args []string, stored string) (string, error) {
	if len(args) == 1 && args[0] != "" {
		return args[0], nil
	}
	if stored != "" {
		return stored, nil
	}
	return "", fmt.Errorf("no server ID given and none stored; pass a server ID or run \"lakegate server create\" first")
}

// ---------------------------------------------------------------------------
// server create
// ---------------------------------------------------------------------------

// serverCreateDeps holds the injectable dependencies for server create.
type serverCreateDeps struct {
	create   lakeaws.CreateServerAPI
	describe lakeaws.DescribeServerAPI

	// defaultLoggingRole is used when --logging-role is not given.
	defaultLoggingRole string
	// defaultSecurityPolicy is used when --security-policy is not given.
	defaultSecurityPolicy string

	region string
	poll   transfer.PollConfig

	// tags are attached to the new server. May be nil.
	tags []transfertypes.Tag

	// persist records the new server ID as the CLI default. May be nil.
	persist func(serverID string) error
}

func newServerCreateCommand() *cobra.Command {
	return newServerCreateCommandWithDeps(nil)
}

// newServerCreateCommandWithDeps creates the command with explicit
// dependencies for testing.
func newServerCreateCommandWithDeps(deps *serverCreateDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an SFTP transfer server",
		Long: "Create an AWS Transfer Family server with the S3 domain, a public " +
			"endpoint, SFTP protocol, and service-managed identities. The new " +
			"server ID becomes the default for later commands.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runServerCreate(cmd, deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}

			securityPolicy := ""
			if clients.lakegateConfig != nil {
				securityPolicy = clients.lakegateConfig.SecurityPolicy
			}

			start := time.Now()
			err := runServerCreate(cmd, &serverCreateDeps{
				create:                clients.transferClient,
				describe:              clients.transferClient,
				defaultLoggingRole:    identity.LoggingRoleARN(clients.caller.AccountID, "lakegate-transfer-logging"),
				defaultSecurityPolicy: securityPolicy,
				region:                clients.region,
				poll:                  clients.pollConfig(),
				tags: tags.NewTagBuilder(clients.caller.Name, clients.caller.ARN).
					WithComponent(tags.ComponentServer).
					Build(),
				persist: func(serverID string) error {
					configDir := config.DefaultConfigDir()
					cfg, err := config.Load(configDir)
					if err != nil {
						return err
					}
					if err := cfg.Set("server_id", serverID); err != nil {
						return err
					}
					return config.Save(cfg, configDir)
				},
			})
			clients.log("transfer", "CreateServer", start, err)
			if err == nil {
				clients.audit("server create", "")
			}
			return err
		},
	}
	cmd.Flags().String("logging-role", "", "CloudWatch logging role ARN (defaults to the setup stack's role)")
	cmd.Flags().String("security-policy", "", "Transfer security policy name")
	cmd.Flags().Bool("wait", false, "Wait until the server reports ONLINE")
	return cmd
}

func runServerCreate(cmd *cobra.Command, deps *serverCreateDeps) error {
	ctx := cmdContext(cmd)

	loggingRole, err := cmd.Flags().GetString("logging-role")
	if err != nil {
		return err
	}
	if loggingRole == "" {
		loggingRole = deps.defaultLoggingRole
	}
	securityPolicy, err := cmd.Flags().GetString("security-policy")
	if err != nil {
		return err
	}
	if securityPolicy == "" {
		securityPolicy = deps.defaultSecurityPolicy
	}
	wait, err := cmd.Flags().GetBool("wait")
	if err != nil {
		return err
	}

	serverID, err := transfer.CreateServer(ctx, deps.create, transfer.ServerConfig{
		LoggingRoleARN: loggingRole,
		SecurityPolicy: securityPolicy,
		Tags:           deps.tags,
	})
	if err != nil {
		return fmt.Errorf("creating transfer server: %w", err)
	}

	w := cmd.OutOrStdout()
	cliCtx := cli.FromCommand(cmd)
	jsonOut := cliCtx != nil && cliCtx.JSON

	if deps.persist != nil {
		if err := deps.persist(serverID); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not record server ID %s: %v\n", serverID, err)
		}
	}

	if wait {
		sp := progress.NewCommandSpinner(w, jsonOut)
		sp.Start("Waiting for server to come online...")
		if err := transfer.WaitOnline(ctx, deps.describe, serverID, deps.poll, sp.Writer); err != nil {
			sp.Fail(err.Error())
			return err
		}
		sp.Stop("")
	}

	endpoint := transfer.Endpoint(serverID, deps.region)

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{
			"server_id": serverID,
			"endpoint":  endpoint,
		})
	}

	fmt.Fprintf(w, "Server %s created.\nEndpoint: %s\n", serverID, endpoint)
	return nil
}

// ---------------------------------------------------------------------------
// server start
// ---------------------------------------------------------------------------

// serverStartDeps holds the injectable dependencies for server start.
type serverStartDeps struct {
	start    lakeaws.StartServerAPI
	describe lakeaws.DescribeServerAPI
	stored   string
	poll     transfer.PollConfig
}

func newServerStartCommand() *cobra.Command {
	return newServerStartCommandWithDeps(nil)
}

func newServerStartCommandWithDeps(deps *serverStartDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [server-id]",
		Short: "Start a stopped transfer server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runServerStart(cmd, args, deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			stored := ""
			if clients.lakegateConfig != nil {
				stored = clients.lakegateConfig.ServerID
			}
			start := time.Now()
			err := runServerStart(cmd, args, &serverStartDeps{
				start:    clients.transferClient,
				describe: clients.transferClient,
				stored:   stored,
				poll:     clients.pollConfig(),
			})
			clients.log("transfer", "StartServer", start, err)
			if err == nil {
				serverID, _ := resolveServerID(args, stored)
				clients.audit("server start", serverID)
			}
			return err
		},
	}
	cmd.Flags().Bool("wait", false, "Wait until the server reports ONLINE")
	return cmd
}

func runServerStart(cmd *cobra.Command, args []string, deps *serverStartDeps) error {
	ctx := cmdContext(cmd)

	serverID, err := resolveServerID(args, deps.stored)
	if err != nil {
		return err
	}
	wait, err := cmd.Flags().GetBool("wait")
	if err != nil {
		return err
	}

	if err := transfer.StartServer(ctx, deps.start, serverID); err != nil {
		return fmt.Errorf("starting server %s: %w", serverID, err)
	}

	w := cmd.OutOrStdout()

	if wait {
		if err := transfer.WaitOnline(ctx, deps.describe, serverID, deps.poll, w); err != nil {
			return err
		}
	}

	cliCtx := cli.FromCommand(cmd)
	if cliCtx != nil && cliCtx.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{"server_id": serverID, "action": "start"})
	}

	fmt.Fprintf(w, "Server %s starting.\n", serverID)
	return nil
}

// ---------------------------------------------------------------------------
// server stop
// ---------------------------------------------------------------------------

// serverStopDeps holds the injectable dependencies for server stop.
type serverStopDeps struct {
	stop   lakeaws.StopServerAPI
	stored string
}

func newServerStopCommand() *cobra.Command {
	return newServerStopCommandWithDeps(nil)
}

func newServerStopCommandWithDeps(deps *serverStopDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "stop [server-id]",
		Short: "Stop a running transfer server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runServerStop(cmd, args, deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			stored := ""
			if clients.lakegateConfig != nil {
				stored = clients.lakegateConfig.ServerID
			}
			start := time.Now()
			err := runServerStop(cmd, args, &serverStopDeps{
				stop:   clients.transferClient,
				stored: stored,
			})
			clients.log("transfer", "StopServer", start, err)
			if err == nil {
				serverID, _ := resolveServerID(args, stored)
				clients.audit("server stop", serverID)
			}
			return err
		},
	}
}

func runServerStop(cmd *cobra.Command, args []string, deps *serverStopDeps) error {
	ctx := cmdContext(cmd)

	serverID, err := resolveServerID(args, deps.stored)
	if err != nil {
		return err
	}

	if err := transfer.StopServer(ctx, deps.stop, serverID); err != nil {
		return fmt.Errorf("stopping server %s: %w", serverID, err)
	}

	cliCtx := cli.FromCommand(cmd)
	if cliCtx != nil && cliCtx.JSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{"server_id": serverID, "action": "stop"})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Server %s stopping.\n", serverID)
	return nil
}

// ---------------------------------------------------------------------------
// server status
// ---------------------------------------------------------------------------

// serverStatusDeps holds the injectable dependencies for server status.
type serverStatusDeps struct {
	describe lakeaws.DescribeServerAPI
	stored   string
	region   string
}

func newServerStatusCommand() *cobra.Command {
	return newServerStatusCommandWithDeps(nil)
}

func newServerStatusCommandWithDeps(deps *serverStatusDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status [server-id]",
		Short: "Show the state and endpoint of a transfer server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runServerStatus(cmd, args, deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			stored := ""
			if clients.lakegateConfig != nil {
				stored = clients.lakegateConfig.ServerID
			}
			start := time.Now()
			err := runServerStatus(cmd, args, &serverStatusDeps{
				describe: clients.transferClient,
				stored:   stored,
				region:   clients.region,
			})
			clients.log("transfer", "DescribeServer", start, err)
			return err
		},
	}
}

func runServerStatus(cmd *cobra.Command, args []string, deps *serverStatusDeps) error {
	ctx := cmdContext(cmd)

	serverID, err := resolveServerID(args, deps.stored)
	if err != nil {
		return err
	}

	state, err := transfer.ServerState(ctx, deps.describe, serverID)
	if err != nil {
		return fmt.Errorf("describing server %s: %w", serverID, err)
	}

	endpoint := transfer.Endpoint(serverID, deps.region)

	cliCtx := cli.FromCommand(cmd)
	if cliCtx != nil && cliCtx.JSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{
			"server_id": serverID,
			"state":     string(state),
			"endpoint":  endpoint,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Server:   %s\nState:    %s\nEndpoint: %s\n", serverID, state, endpoint)
	return nil
}
