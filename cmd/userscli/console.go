package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"wenlock/internal/apperrors"
	"wenlock/internal/listview"
	"wenlock/internal/models"
	"wenlock/internal/validation"
)

const helpText = `commands:
  <text>                  edit the search box (empty line clears it)
  :focus                  show the list without searching
  :search <text>          same as typing <text>
  :page N | :next | :prev | :first | :last
  :size N                 users per page
  :show ID
  :create name=.. email=.. registration=.. password=.. confirm=..
  :edit ID [field=value ...]
  :delete ID
  :refresh
  :help | :quit
`

// userReader is the read side used by :show.
type userReader interface {
	GetUser(ctx context.Context, id string) (*models.PublicUser, error)
}

// console turns input lines into coordinator events and prints the view.
type console struct {
	out     io.Writer
	outMu   sync.Mutex
	list    *listview.Coordinator
	mutator *listview.Mutator
	api     userReader

	changed  chan struct{}
	rendered uint64
}

func newConsole(out io.Writer) *console {
	return &console{out: out, changed: make(chan struct{}, 1)}
}

// onChange only signals; rendering reads the state outside the coordinator
// lock.
func (c *console) onChange(listview.State) {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

func (c *console) renderLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.changed:
			s := c.list.State()
			if s.IsLoading || s.RequestToken == c.rendered {
				continue
			}
			c.rendered = s.RequestToken
			c.render(s)
		}
	}
}

func (c *console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) render(s listview.State) {
	c.outMu.Lock()
	defer c.outMu.Unlock()

	if s.ErrorMessage != "" {
		fmt.Fprintf(c.out, "! %s\n", s.ErrorMessage)
	}
	r := s.LatestResult
	if r == nil {
		return
	}

	fmt.Fprintf(c.out, "search %q  page %d/%d  size %d  total %d\n",
		s.CommittedQuery, s.Page, max(r.TotalPages, 1), s.PageSize, r.Total)
	if len(r.Data) == 0 {
		fmt.Fprintln(c.out, "  (no users)")
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tNAME\tEMAIL\tREGISTRATION")
	for _, u := range r.Data {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Registration)
	}
	_ = tw.Flush()
}

// run reads commands until EOF, :quit or ctx is done.
func (c *console) run(ctx context.Context, in io.Reader) error {
	c.printf("%s", helpText)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		quit, err := c.handle(ctx, scanner.Text())
		if err != nil {
			c.printf("! %s\n", describe(err))
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

// handle executes one input line. It reports whether the session should end.
func (c *console) handle(ctx context.Context, line string) (bool, error) {
	if !strings.HasPrefix(line, ":") {
		c.list.SetSearch(line)
		return false, nil
	}

	cmd, rest, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "quit", "q":
		return true, nil
	case "help", "h":
		c.printf("%s", helpText)
	case "focus":
		c.list.Activate()
	case "search":
		c.list.SetSearch(rest)
	case "refresh":
		c.list.Refresh()
	case "page":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return false, apperrors.NewValidation("page", "page must be a number")
		}
		c.list.GoTo(n)
	case "next":
		c.list.GoTo(c.list.State().Page + 1)
	case "prev":
		c.list.GoTo(c.list.State().Page - 1)
	case "first":
		c.list.GoTo(1)
	case "last":
		s := c.list.State()
		if s.LatestResult != nil {
			c.list.GoTo(s.LatestResult.TotalPages)
		}
	case "size":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return false, apperrors.NewValidation("pageSize", "page size must be a number")
		}
		return false, c.list.SetPageSize(n)
	case "show":
		user, err := c.api.GetUser(ctx, rest)
		if err != nil {
			return false, err
		}
		c.printf("%s  %s <%s>  registration %s  created %s\n",
			user.ID, user.Name, user.Email, user.Registration, user.CreatedAt.Format("2006-01-02 15:04"))
	case "create":
		form, err := parseForm(rest, validation.UserForm{})
		if err != nil {
			return false, err
		}
		user, err := c.mutator.Create(ctx, form)
		if err != nil {
			return false, err
		}
		c.printf("created user %s\n", user.ID)
	case "edit":
		id, fields, _ := strings.Cut(rest, " ")
		if id == "" {
			return false, apperrors.NewValidation("id", "usage: :edit ID field=value ...")
		}
		current, err := c.api.GetUser(ctx, id)
		if err != nil {
			return false, err
		}
		form, err := parseForm(fields, validation.UserForm{
			Name:         current.Name,
			Email:        current.Email,
			Registration: current.Registration,
		})
		if err != nil {
			return false, err
		}
		if _, err := c.mutator.Update(ctx, id, form); err != nil {
			return false, err
		}
		c.printf("updated user %s\n", id)
	case "delete":
		if rest == "" {
			return false, apperrors.NewValidation("id", "usage: :delete ID")
		}
		if err := c.mutator.Delete(ctx, rest); err != nil {
			return false, err
		}
		c.printf("deleted user %s\n", rest)
	default:
		return false, fmt.Errorf("unknown command %q, try :help", cmd)
	}
	return false, nil
}

// parseForm applies key=value pairs to base.
func parseForm(s string, base validation.UserForm) (validation.UserForm, error) {
	args, err := splitArgs(s)
	if err != nil {
		return base, err
	}
	form := base
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return base, fmt.Errorf("expected field=value, got %q", arg)
		}
		switch strings.ToLower(key) {
		case "name":
			form.Name = value
		case "email":
			form.Email = value
		case "registration", "reg":
			form.Registration = value
		case "password":
			form.Password = value
		case "confirm", "passwordconfirm":
			form.PasswordConfirm = value
		default:
			return base, fmt.Errorf("unknown field %q", key)
		}
	}
	return form, nil
}

// splitArgs splits on spaces, keeping double-quoted runs together.
func splitArgs(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case r == ' ' && !quoted:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}

func describe(err error) string {
	var (
		verr     *apperrors.ValidationError
		conflict *apperrors.ConflictError
		te       *apperrors.TransportError
	)
	switch {
	case errors.As(err, &verr):
		keys := make([]string, 0, len(verr.Fields))
		for k := range verr.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, verr.Fields[k])
		}
		return strings.Join(parts, "; ")
	case errors.As(err, &conflict):
		return conflict.Error()
	case errors.Is(err, apperrors.ErrUserNotFound):
		return "user not found"
	case errors.As(err, &te):
		return "the server could not be reached, try again"
	default:
		return err.Error()
	}
}
