package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"quantum-stock/internal/auth"
	"quantum-stock/internal/domain"
	"quantum-stock/internal/stock"
)

var (
	errQuit           = errors.New("quit")
	errUnknownCommand = errors.New("unknown command")
	errNoDialog       = errors.New("no dialog is open")
)

const helpText = `Commands:
  list                      show the current page
  search <text>             type into the search box (debounced)
  min <price> | max <price> type a price bound (debounced)
  flush                     apply pending typing now
  category <name|all>       filter by category
  page <n> | next | prev    change page
  clear                     clear every filter
  refresh                   refetch the current page
  view <table|cards>        switch the list layout
  add                       open an empty product form
  edit <id>                 open the form for a product on this page
  delete <id>               ask to delete a product on this page
  set <field> <value>       change the open form (name, description,
                            category, price, quantity, minQuantity)
  submit                    save the form or confirm the deletion
  close | discard | keep    close the dialog, drop changes, keep editing
  dismiss                   hide the error banner
  token <jwt>               sign in with an access token
  where                     print the current address
  quit
`

// console executes one command line at a time against the controller
type console struct {
	ctx    context.Context
	ctrl   *stock.Controller
	parser *auth.Parser
	out    io.Writer
}

func (c *console) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch cmd {
	case "help", "?":
		fmt.Fprint(c.out, helpText)
	case "quit", "exit":
		return errQuit
	case "list", "ls":
		c.ctrl.Wait()
		render(c.out, c.ctrl.View())
	case "where":
		fmt.Fprintln(c.out, c.ctrl.View().Address)
	case "search":
		c.ctrl.TypeSearch(rest)
		fmt.Fprintf(c.out, "Buscando %q...\n", rest)
	case "min":
		c.ctrl.TypeMinPrice(rest)
	case "max":
		c.ctrl.TypeMaxPrice(rest)
	case "flush":
		c.ctrl.FlushInputs()
	case "category":
		c.ctrl.SelectCategory(rest)
	case "page":
		n, err := intArg(args)
		if err != nil {
			return err
		}
		c.ctrl.GoToPage(n)
	case "next":
		if v := c.ctrl.View(); v.HasNext() {
			c.ctrl.GoToPage(v.NextPage())
		}
	case "prev":
		if v := c.ctrl.View(); v.HasPrev() {
			c.ctrl.GoToPage(v.PrevPage())
		}
	case "clear":
		c.ctrl.ClearFilters()
	case "refresh":
		c.ctrl.Refresh()
	case "view":
		c.ctrl.SetViewMode(stock.ParseViewMode(rest))
	case "add":
		c.ctrl.OpenAdd()
		fmt.Fprintln(c.out, "Nuevo producto: usa set <campo> <valor> y submit")
	case "edit", "delete":
		return c.openDialog(cmd, args)
	case "set":
		return c.setField(args)
	case "submit":
		return c.submit()
	case "close":
		if !c.ctrl.RequestClose() {
			fmt.Fprintln(c.out, "Hay cambios sin guardar: discard para descartarlos, keep para seguir editando")
		}
	case "discard":
		c.ctrl.ConfirmDiscard()
	case "keep":
		c.ctrl.KeepEditing()
	case "dismiss":
		c.ctrl.DismissError()
	case "token":
		return c.signIn(rest)
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, cmd)
	}
	return nil
}

func (c *console) signIn(token string) error {
	session, err := c.parser.Parse(token)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	access := c.ctrl.SetSession(session)
	fmt.Fprintf(c.out, "Sesión de %s: %s\n", session.Username, access)
	return nil
}

func (c *console) openDialog(cmd string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <id>", cmd)
	}
	c.ctrl.Wait()
	product, ok := c.ctrl.FindProduct(domain.ProductID(args[0]))
	if !ok {
		return fmt.Errorf("product %s is not on this page", args[0])
	}
	if cmd == "edit" {
		c.ctrl.OpenEdit(product)
		return nil
	}
	c.ctrl.OpenDelete(product)
	fmt.Fprintf(c.out, "¿Eliminar %q? submit para confirmar, close para cancelar\n", product.Name)
	return nil
}

func (c *console) setField(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: set <field> <value>")
	}
	if m := c.ctrl.View().Modal; m.Kind != stock.ModalAdd && m.Kind != stock.ModalEdit {
		return errNoDialog
	}

	value := strings.Join(args[1:], " ")
	var applyErr error
	c.ctrl.EditDraft(func(in *domain.ProductInput) {
		applyErr = applyField(in, args[0], value)
	})
	return applyErr
}

// applyField sets one form field from its text
func applyField(in *domain.ProductInput, field, value string) error {
	switch strings.ToLower(field) {
	case "name":
		in.Name = value
	case "description":
		in.Description = value
	case "category":
		in.Category = value
	case "price":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", value, err)
		}
		in.Price = f
	case "quantity", "minquantity":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", field, value, err)
		}
		if strings.EqualFold(field, "quantity") {
			in.Quantity = n
		} else {
			in.MinQuantity = n
		}
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

func (c *console) submit() error {
	if !c.ctrl.View().Modal.Open() {
		return errNoDialog
	}
	if c.ctrl.Submit(c.ctx) {
		c.ctrl.Wait()
		fmt.Fprintln(c.out, "Guardado")
		return nil
	}

	m := c.ctrl.View().Modal
	for field, msg := range m.FieldErrors {
		fmt.Fprintf(c.out, "  %s: %s\n", field, msg)
	}
	if m.Error != "" {
		fmt.Fprintln(c.out, m.Error)
	}
	return nil
}

func intArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", args[0], err)
	}
	return n, nil
}

// render prints the screen: stats, filters, rows and pagination
func render(out io.Writer, v stock.View) {
	switch v.Access {
	case stock.AccessChecking, stock.AccessLogin:
		fmt.Fprintln(out, "Inicia sesión con: token <jwt>")
		return
	case stock.AccessDenied:
		fmt.Fprintln(out, "No tienes permisos para acceder al inventario.")
		return
	}

	s := v.Stats
	fmt.Fprintf(out, "Total %d | Normal %d (%d%%) | Stock bajo %d | Sin stock %d (%d%%) | Unidades %d | Valor %s\n",
		s.Total, s.Normal, s.NormalPercent(), s.LowStock, s.OutOfStock, s.OutOfStockPercent(), s.Units, s.ValueLabel())
	fmt.Fprintf(out, "Filtros: búsqueda=%q categoría=%s min=%s max=%s\n",
		v.SearchInput, domain.CategoryLabel(v.State.Category), v.MinPriceInput, v.MaxPriceInput)

	if v.Banner != "" {
		fmt.Fprintf(out, "! %s\n", v.Banner)
	}
	if v.IsLoading {
		fmt.Fprintln(out, "Cargando...")
		return
	}
	if len(v.Rows) == 0 {
		fmt.Fprintln(out, "No se encontraron productos")
		return
	}

	if v.ViewMode == stock.ViewCards {
		for _, r := range v.Rows {
			fmt.Fprintf(out, "[%s] %s · %s\n    %s\n    $%.2f · %d uds (mín. %d) · %s\n",
				r.ID, r.Name, r.CategoryLabel, r.Description, r.Price, r.Quantity, r.MinQuantity, r.StatusLabel)
		}
	} else {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPRODUCTO\tCATEGORÍA\tPRECIO\tCANTIDAD\tMÍNIMO\tESTADO")
		for _, r := range v.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t$%.2f\t%d\t%d\t%s\n",
				r.ID, r.Name, r.CategoryLabel, r.Price, r.Quantity, r.MinQuantity, r.StatusLabel)
		}
		tw.Flush()
	}

	if len(v.Pages) > 0 {
		pages := make([]string, 0, len(v.Pages))
		for _, p := range v.Pages {
			if p == v.State.Page {
				pages = append(pages, fmt.Sprintf("[%d]", p))
			} else {
				pages = append(pages, strconv.Itoa(p))
			}
		}
		fmt.Fprintf(out, "%s  %s\n", v.Range.Label(), strings.Join(pages, " "))
	} else if v.Range.Total > 0 {
		fmt.Fprintln(out, v.Range.Label())
	}
}
