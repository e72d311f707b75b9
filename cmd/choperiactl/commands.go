package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
	"github.com/happy-hops/choperia/pkg/client"
)

func pedidosCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pedidos",
		Short: "Inspect orders",
	}
	var (
		tipo   string
		status string
		mesaID int64
		limit  int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			pedidos, cached, err := c.Pedidos(cmd.Context(), pedido.Filter{
				Tipo:   pedido.Tipo(tipo),
				Status: pedido.Status(status),
				MesaID: mesaID,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			cachedNote(cmd, cached)
			return opts.emit(cmd, pedidos, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NUMERO\tTIPO\tSTATUS\tMESA\tTOTAL\tCRIADO")
				for _, p := range pedidos {
					mesaLabel := "-"
					if p.MesaID != nil {
						mesaLabel = fmt.Sprint(*p.MesaID)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n", p.Numero, p.Tipo, p.Status, mesaLabel, p.Total,
						p.CreatedAt.Local().Format("2006-01-02 15:04"))
				}
				tw.Flush()
			})
		},
	}
	list.Flags().StringVar(&tipo, "tipo", "", "online or fisica")
	list.Flags().StringVar(&status, "status", "", "Order status")
	list.Flags().Int64Var(&mesaID, "mesa", 0, "Only orders of this mesa")
	list.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum orders")
	cmd.AddCommand(list)
	return cmd
}

func dashboardCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show today's figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			m, cached, err := c.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			cachedNote(cmd, cached)
			return opts.emit(cmd, m, func(w io.Writer) {
				fmt.Fprintf(w, "Mesas ativas:      %d\n", m.MesasAtivas)
				fmt.Fprintf(w, "Produtos:          %d\n", m.ProdutosCount)
				fmt.Fprintf(w, "Pedidos hoje:      %d (ontem %d)\n", m.PedidosHoje, m.PedidosOntem)
				fmt.Fprintf(w, "Faturamento hoje:  %.2f (ontem %.2f)\n", m.FaturamentoHoje, m.FaturamentoOntem)
			})
		},
	}
}

func watchCmd(opts *options) *cobra.Command {
	var (
		interval time.Duration
		ws       bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow mesa changes made by other terminals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			w := client.NewWatcher(c, client.WatcherConfig{Interval: interval, WebSocket: ws})
			return w.Run(ctx, func(ev mesa.Event) {
				_ = opts.emit(cmd, ev, func(out io.Writer) {
					at := time.UnixMilli(ev.Timestamp).Local().Format("15:04:05")
					who := ev.User.Nome
					if who == "" {
						who = fmt.Sprintf("usuario %d", ev.User.ID)
					}
					fmt.Fprintf(out, "%s %-11s %s (%s) por %s\n", at, ev.Type, ev.Mesa.Slug, ev.Mesa.Status, who)
				})
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")
	cmd.Flags().BoolVar(&ws, "ws", false, "Follow the websocket stream instead of polling")
	return cmd
}

func syncCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay writes made while offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			result, err := c.Sync(cmd.Context())
			if emitErr := opts.emit(cmd, result, func(w io.Writer) {
				fmt.Fprintf(w, "replayed %d, rejected %d, pending %d\n", result.Replayed, result.Rejected, result.Pending)
			}); emitErr != nil {
				return emitErr
			}
			return err
		},
	}
}

func healthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			up := c.Available(cmd.Context())
			pending, err := c.Mirror().Pending()
			if err != nil {
				return err
			}
			status := map[string]interface{}{
				"server":    opts.server,
				"available": up,
				"pending":   len(pending),
			}
			return opts.emit(cmd, status, func(w io.Writer) {
				state := "offline"
				if up {
					state = "online"
				}
				fmt.Fprintf(w, "%s: %s (%d pending writes)\n", opts.server, state, len(pending))
			})
		},
	}
}
