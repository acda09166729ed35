package controllers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/feeplan"
	"github.com/ManuelReschke/FeeBook/internal/pkg/flash"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

// feeEditor is the fee plan grid shared by the provider portal and the back
// office. basePath is the page the grid lives on.
type feeEditor struct {
	d          *Deps
	a          actor.Actor
	providerID uint
	memberID   uint
	basePath   string
}

func (fe feeEditor) backend(c *fiber.Ctx) feeplan.Backend {
	if fe.d.PortalAPI != nil {
		return fe.d.PortalAPI.WithCookie(c.Get(fiber.HeaderCookie))
	}
	return feeplan.ActorBackend{Service: fe.d.FeePlans, Actor: fe.a}
}

// load returns the buffered editor or a fresh one fetched from the backend.
func (fe feeEditor) load(c *fiber.Ctx, refresh bool) (*feeplan.Editor, error) {
	ctx := c.UserContext()
	if !refresh {
		e, err := fe.d.Editors.Load(ctx, fe.a.UserID, fe.providerID, fe.memberID)
		if err != nil {
			log.Warnf("[FeeEditor] Load buffer of member %d failed: %v", fe.memberID, err)
		}
		if e != nil {
			e.Config = feeplan.ConfigFor(fe.a.Role)
			return e, nil
		}
	}
	e := feeplan.NewEditor(feeplan.ConfigFor(fe.a.Role), fe.providerID, fe.memberID)
	if err := e.Fetch(ctx, fe.backend(c)); err != nil {
		return nil, err
	}
	return e, nil
}

func (fe feeEditor) store(ctx context.Context, e *feeplan.Editor) {
	if err := fe.d.Editors.Save(ctx, fe.a.UserID, e); err != nil {
		log.Warnf("[FeeEditor] Save buffer of member %d failed: %v", fe.memberID, err)
	}
}

func (fe feeEditor) clear(ctx context.Context) {
	if err := fe.d.Editors.Clear(ctx, fe.a.UserID, fe.memberID); err != nil {
		log.Warnf("[FeeEditor] Clear buffer of member %d failed: %v", fe.memberID, err)
	}
}

type editorView struct {
	Editor   *feeplan.Editor
	Visible  []int
	Errors   *feeplan.ValidationError
	Report   *feeplan.SaveReport
	BasePath string
}

func (fe feeEditor) render(c *fiber.Ctx, e *feeplan.Editor, verr *feeplan.ValidationError, report *feeplan.SaveReport) error {
	return render(c, "feeplans/editor", "Fee plans of "+e.MemberName, fiber.Map{
		"View": editorView{
			Editor:   e,
			Visible:  e.VisibleIndexes(),
			Errors:   verr,
			Report:   report,
			BasePath: fe.basePath,
		},
	})
}

// show renders the grid. ?reload=1 discards unsaved edits.
func (fe feeEditor) show(c *fiber.Ctx) error {
	e, err := fe.load(c, c.Query("reload") == "1")
	if err != nil {
		return pageError(c, err)
	}
	return fe.render(c, e, nil, nil)
}

// applyForm copies the posted cells into the buffer. Cells of settled or
// deleted rows are ignored.
func applyForm(c *fiber.Ctx, e *feeplan.Editor) error {
	var verr feeplan.ValidationError
	args := c.Context().PostArgs()
	for _, i := range e.VisibleIndexes() {
		if e.Rows[i].IsPaid {
			continue
		}
		for _, f := range []feeplan.Field{feeplan.FieldName, feeplan.FieldDescription, feeplan.FieldAmount, feeplan.FieldDueDate} {
			key := fmt.Sprintf("rows[%d][%s]", i, f)
			if !args.Has(key) {
				continue
			}
			if err := e.EditField(i, f, string(args.Peek(key))); err != nil {
				verr.Fields = append(verr.Fields, feeplan.FieldError{Row: i, Field: f, Message: err.Error()})
			}
		}
	}
	if len(verr.Fields) > 0 {
		verr.Message = "Some cells could not be read"
		return &verr
	}
	return nil
}

// action handles one grid submission. The action value is one of add,
// remove:<row>, installments, save, paid:<feePlanId>, unpaid:<feePlanId>.
func (fe feeEditor) action(c *fiber.Ctx) error {
	ctx := c.UserContext()
	e, err := fe.load(c, false)
	if err != nil {
		return pageError(c, err)
	}
	if err := applyForm(c, e); err != nil {
		var verr *feeplan.ValidationError
		errors.As(err, &verr)
		fe.store(ctx, e)
		return fe.render(c, e, verr, nil)
	}

	verb, arg, _ := strings.Cut(c.FormValue("action"), ":")
	switch verb {
	case "add":
		err = e.AddRow()
	case "remove":
		idx, convErr := strconv.Atoi(arg)
		if convErr != nil {
			err = feeplan.ErrRowNotFound
			break
		}
		err = e.RemoveRow(idx)
	case "installments":
		err = fe.addInstallments(c, e)
	case "save":
		return fe.save(c, e)
	case "paid", "unpaid":
		return fe.markPaid(c, parseID(arg), verb == "paid")
	default:
		err = errors.New("unknown action")
	}

	fe.store(ctx, e)
	if err != nil {
		flash.Set(c, fiber.Map{"type": "error", "message": errorMessage(err)})
	}
	return fe.render(c, e, nil, nil)
}

func (fe feeEditor) addInstallments(c *fiber.Ctx, e *feeplan.Editor) error {
	start, err := feeplan.ParseDate(strings.TrimSpace(c.FormValue("installments[start]")))
	if err != nil {
		return fmt.Errorf("%w: start date", feeplan.ErrInvalidSchedule)
	}
	n, err := e.AddInstallments(feeplan.InstallmentSpec{
		BaseName:    c.FormValue("installments[name]"),
		Description: c.FormValue("installments[description]"),
		Amount:      c.FormValue("installments[amount]"),
		Start:       start,
		Rule:        c.FormValue("installments[rule]"),
	})
	if err != nil {
		return err
	}
	flash.Set(c, fiber.Map{"type": "success", "message": fmt.Sprintf("Added %d installments", n)})
	return nil
}

func (fe feeEditor) save(c *fiber.Ctx, e *feeplan.Editor) error {
	ctx := c.UserContext()
	report, err := e.Save(ctx, fe.backend(c))
	if err == nil {
		fe.clear(ctx)
		return flash.Success(c, fe.basePath, fmt.Sprintf("Saved %d changes", report.Writes()))
	}

	var verr *feeplan.ValidationError
	var saveErr *feeplan.SaveError
	switch {
	case errors.As(err, &verr):
		fe.store(ctx, e)
		return fe.render(c, e, verr, nil)
	case errors.As(err, &saveErr):
		log.Errorf("[FeeEditor] Save for member %d failed: %s", fe.memberID, saveErr.Detail())
		fe.store(ctx, e)
		msg := "Saving failed. Nothing was changed."
		if saveErr.Report.PartiallyApplied() {
			msg = "Some changes were saved, others failed. Save again to retry the rest."
		}
		flash.Set(c, fiber.Map{"type": "error", "message": msg})
		return fe.render(c, e, nil, saveErr.Report)
	}
	// Saved but the reload failed.
	fe.clear(ctx)
	return flash.Error(c, fe.basePath, errorMessage(err))
}

func (fe feeEditor) markPaid(c *fiber.Ctx, feePlanID uint, paid bool) error {
	ctx := c.UserContext()
	if _, err := fe.d.FeePlans.MarkPaid(ctx, fe.a, feePlanID, paid); err != nil {
		return flash.Error(c, fe.basePath, errorMessage(err))
	}
	fe.clear(ctx)
	msg := "Marked as paid offline"
	if !paid {
		msg = "Offline payment removed"
	}
	return flash.Success(c, fe.basePath, msg)
}

// editorFor builds the grid of the actor's own member.
func editorFor(c *fiber.Ctx, d *Deps, providerID, memberID uint, basePath string) feeEditor {
	return feeEditor{d: d, a: usercontext.GetActor(c), providerID: providerID, memberID: memberID, basePath: basePath}
}
