package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/pkg/client"
)

func mesasCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mesas",
		Short: "List and operate mesas",
	}
	cmd.AddCommand(mesasListCmd(opts), mesasShowCmd(opts), mesasAddItemCmd(opts), mesasPayCmd(opts), mesasCancelCmd(opts))
	return cmd
}

func mesasListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List mesas with their open orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			views, cached, err := c.Mesas(cmd.Context())
			if err != nil {
				return err
			}
			cachedNote(cmd, cached)
			return opts.emit(cmd, views, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSLUG\tSTATUS\tPEDIDO\tITENS\tTOTAL")
				for _, v := range views {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%.2f\n", v.ID, v.Slug, statusLabel(w, v.Status), pedidoLabel(v), len(v.Itens), itensTotal(v))
				}
				tw.Flush()
			})
		},
	}
}

func mesasShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <mesa-id>",
		Short: "Show a mesa and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "mesa id")
			if err != nil {
				return err
			}
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			view, cached, err := c.Mesa(cmd.Context(), id)
			if err != nil {
				return err
			}
			cachedNote(cmd, cached)
			return opts.emit(cmd, view, func(w io.Writer) { printMesa(w, view) })
		},
	}
}

func mesasAddItemCmd(opts *options) *cobra.Command {
	var (
		quantidade int
		preco      float64
	)
	cmd := &cobra.Command{
		Use:   "add-item <mesa-id> <produto-id>",
		Short: "Add a produto to a mesa's open order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mesaID, err := parseID(args[0], "mesa id")
			if err != nil {
				return err
			}
			produtoID, err := parseID(args[1], "produto id")
			if err != nil {
				return err
			}
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			req := client.AddItemRequest{MesaID: mesaID, ProdutoID: produtoID, Quantidade: quantidade}
			if cmd.Flags().Changed("preco") {
				req.PrecoUnitario = &preco
			}
			view, cached, err := c.AddItem(cmd.Context(), req)
			if err != nil {
				return err
			}
			queuedNote(cmd, cached)
			return opts.emit(cmd, view, func(w io.Writer) { printMesa(w, view) })
		},
	}
	cmd.Flags().IntVarP(&quantidade, "quantidade", "q", 1, "Quantity")
	cmd.Flags().Float64Var(&preco, "preco", 0, "Override unit price")
	return cmd
}

func mesasPayCmd(opts *options) *cobra.Command {
	var (
		metodo   string
		recebido float64
		desconto float64
	)
	cmd := &cobra.Command{
		Use:   "pay <mesa-id>",
		Short: "Pay a mesa's open order and free the mesa",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mesaID, err := parseID(args[0], "mesa id")
			if err != nil {
				return err
			}
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			req := client.PaymentRequest{MesaID: mesaID, Metodo: metodo, Desconto: desconto}
			if cmd.Flags().Changed("recebido") {
				req.ValorRecebido = &recebido
			}
			result, cached, err := c.PayMesa(cmd.Context(), req)
			if err != nil {
				return err
			}
			queuedNote(cmd, cached)
			return opts.emit(cmd, result, func(w io.Writer) {
				success(w, "mesa %s paga (%s)", result.Mesa.Slug, metodo)
				if result.Troco > 0 {
					fmt.Fprintf(w, "troco: %.2f\n", result.Troco)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&metodo, "metodo", "m", "dinheiro", "Payment method (dinheiro, pix, cartao)")
	cmd.Flags().Float64Var(&recebido, "recebido", 0, "Amount received, for change")
	cmd.Flags().Float64Var(&desconto, "desconto", 0, "Discount")
	return cmd
}

func mesasCancelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <mesa-id>",
		Short: "Cancel a mesa's open order and return its items to stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mesaID, err := parseID(args[0], "mesa id")
			if err != nil {
				return err
			}
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			cached, err := c.CancelPedido(cmd.Context(), mesaID)
			if err != nil {
				return err
			}
			queuedNote(cmd, cached)
			return opts.emit(cmd, map[string]bool{"ok": true}, func(w io.Writer) {
				success(w, "pedido da mesa %d cancelado", mesaID)
			})
		},
	}
}

func pedidoLabel(v mesa.View) string {
	if v.Pedido == 0 {
		return "-"
	}
	label := fmt.Sprintf("#%d", v.Pedido)
	if v.StatusPedido != nil {
		label += " " + string(*v.StatusPedido)
	}
	return label
}

func itensTotal(v mesa.View) float64 {
	total := 0.0
	for _, it := range v.Itens {
		total += it.Subtotal
	}
	return total
}

func printMesa(w io.Writer, v mesa.View) {
	fmt.Fprintf(w, "%s (%s) pedido %s\n", v.Slug, v.Status, pedidoLabel(v))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUTO\tQTD\tUNIT\tSUBTOTAL")
	for _, it := range v.Itens {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\n", it.Nome, it.Quantidade, it.PrecoUnitario, it.Subtotal)
	}
	tw.Flush()
	fmt.Fprintf(w, "total: %.2f\n", itensTotal(v))
}
