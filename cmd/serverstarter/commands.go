package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	serverstarter "github.com/smoothcloud/serverstarter"
	"github.com/smoothcloud/serverstarter/pkg/client"
)

func apiClient(api *APIFlags) *client.Client {
	return client.New(client.Config{BaseURL: api.URL, Timeout: api.Timeout})
}

func createStartCommand(api *APIFlags, flags *StartFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Spawn a supervised server from a descriptor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := serverstarter.Server{
				Name:           flags.Name,
				JavaPath:       flags.JavaPath,
				MinMemoryMB:    flags.MinMemoryMB,
				MaxMemoryMB:    flags.MaxMemoryMB,
				ServerSoftware: flags.Software,
				Port:           flags.Port,
				Proxy:          flags.Proxy,
			}
			if err := srv.Validate(); err != nil {
				return err
			}
			id := flags.ID
			if id == "" {
				id = serverstarter.NewID()
			}
			if err := apiClient(api).Start(context.Background(), id, srv); err != nil {
				return err
			}
			cmd.Printf("started %s (%s)\n", srv.Name, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.ID, "id", "", "server id (generated when empty)")
	cmd.Flags().StringVar(&flags.Name, "name", "", "server name")
	cmd.Flags().StringVar(&flags.JavaPath, "java", "", "JVM binary (default: java)")
	cmd.Flags().IntVar(&flags.MinMemoryMB, "min-memory", 512, "minimum heap in MB")
	cmd.Flags().IntVar(&flags.MaxMemoryMB, "max-memory", 1024, "maximum heap in MB")
	cmd.Flags().StringVar(&flags.Software, "software", "", "path to the server jar")
	cmd.Flags().IntVar(&flags.Port, "port", 25565, "listen port passed to the server")
	cmd.Flags().BoolVar(&flags.Proxy, "proxy", false, "descriptor is a proxy server")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("software")
	return cmd
}

func createStopCommand(api *APIFlags) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a supervised server (graceful, then kill)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := apiClient(api).Stop(context.Background(), id); err != nil {
				return err
			}
			cmd.Printf("stopped %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "server id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func createExecCommand(api *APIFlags) *cobra.Command {
	var id, command string
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Inject a console command into a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := apiClient(api).Execute(context.Background(), id, command); err != nil {
				return err
			}
			cmd.Printf("executed on %s: %s\n", id, command)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "server id")
	cmd.Flags().StringVar(&command, "command", "", "console command to send")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("command")
	return cmd
}

func createLogsCommand(api *APIFlags) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the captured console output of a server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			lines, err := apiClient(api).Logs(context.Background(), id)
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				cmd.Printf("no logs available for server: %s\n", id)
				return nil
			}
			for _, l := range lines {
				cmd.Println(l)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "server id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func createStatusCommand(api *APIFlags) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of one or all supervised servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := apiClient(api)
			if id != "" {
				st, err := c.Status(context.Background(), id)
				if err != nil {
					return err
				}
				printStatus(cmd, st)
				return nil
			}
			sts, err := c.StatusAll(context.Background())
			if err != nil {
				return err
			}
			if len(sts) == 0 {
				cmd.Println("no supervised servers")
				return nil
			}
			for _, st := range sts {
				printStatus(cmd, st)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "server id (all servers when empty)")
	return cmd
}

func printStatus(cmd *cobra.Command, st serverstarter.Status) {
	state := "stopped"
	if st.Running {
		state = "running"
	}
	cmd.Println(fmt.Sprintf("%s  %-16s %-8s pid=%d port=%d lines=%d", st.ID, st.Name, state, st.PID, st.Port, st.LogLines))
}
