package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/billing"
	"github.com/ManuelReschke/FeeBook/internal/pkg/codes"
	"github.com/ManuelReschke/FeeBook/internal/pkg/constants"
	"github.com/ManuelReschke/FeeBook/internal/pkg/flash"
	"github.com/ManuelReschke/FeeBook/internal/pkg/kyc"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

const membersPerPage = 25

// ProviderController serves the provider portal.
type ProviderController struct {
	d *Deps
}

func NewProviderController(d *Deps) *ProviderController {
	return &ProviderController{d: d}
}

// HandleDashboard shows the provider's profile, KYC state and recent payments.
func (pc *ProviderController) HandleDashboard(c *fiber.Ctx) error {
	ctx := c.UserContext()
	a := usercontext.GetActor(c)
	provider, err := pc.d.Repos.Provider.GetByID(a.ProviderID)
	if err != nil {
		return pageError(c, err)
	}
	_, members, err := pc.d.Repos.Member.ListByProvider(a.ProviderID, "", 0, 1)
	if err != nil {
		return pageError(c, err)
	}
	view, err := pc.d.KYC.Get(ctx, a, a.ProviderID)
	if err != nil {
		return pageError(c, err)
	}
	recent, err := pc.d.Payments.History(ctx, a, billing.HistoryFilter{Page: 1, Limit: 5})
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "provider/dashboard", provider.Name, fiber.Map{
		"Provider":    provider,
		"MemberCount": members,
		"KYC":         view,
		"Recent":      recent,
	})
}

// memberForm is the add/edit member form.
type memberForm struct {
	UniqueID         string `form:"uniqueId"`
	FirstName        string `form:"firstName"`
	MiddleName       string `form:"middleName"`
	LastName         string `form:"lastName"`
	Phone            string `form:"phone"`
	Email            string `form:"email"`
	Category         string `form:"category"`
	SubCategory      string `form:"subcategory"`
	GuardianName     string `form:"guardianName"`
	GuardianRelation string `form:"guardianRelation"`
	GuardianPhone    string `form:"guardianPhone"`
}

func (f memberForm) apply(m *models.Member) {
	m.FirstName = strings.TrimSpace(f.FirstName)
	m.MiddleName = strings.TrimSpace(f.MiddleName)
	m.LastName = strings.TrimSpace(f.LastName)
	m.Phone = strings.TrimSpace(f.Phone)
	m.Email = strings.TrimSpace(f.Email)
	m.Category = strings.TrimSpace(f.Category)
	m.SubCategory = strings.TrimSpace(f.SubCategory)
	m.GuardianName = strings.TrimSpace(f.GuardianName)
	m.GuardianRelation = strings.TrimSpace(f.GuardianRelation)
	m.GuardianPhone = strings.TrimSpace(f.GuardianPhone)
}

func memberPath(id uint) string {
	return fmt.Sprintf("%s/%d", constants.ProviderMembersRoute, id)
}

// HandleMembers lists the provider's members with search and paging.
func (pc *ProviderController) HandleMembers(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	page := queryInt(c, "page", 1)
	q := strings.TrimSpace(c.Query("q"))
	members, total, err := pc.d.Repos.Member.ListByProvider(a.ProviderID, q, (page-1)*membersPerPage, membersPerPage)
	if err != nil {
		return pageError(c, err)
	}
	totalPages := int((total + membersPerPage - 1) / membersPerPage)
	return render(c, "provider/members", "Members", fiber.Map{
		"Members":    members,
		"Query":      q,
		"Page":       page,
		"TotalPages": totalPages,
		"Total":      total,
	})
}

// HandleMemberNew renders the empty member form.
func (pc *ProviderController) HandleMemberNew(c *fiber.Ctx) error {
	return render(c, "provider/member_form", "Add member", fiber.Map{"Member": &models.Member{}})
}

// HandleMemberCreate stores a new member. A blank unique id is generated.
func (pc *ProviderController) HandleMemberCreate(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	var form memberForm
	if err := c.BodyParser(&form); err != nil {
		return flash.Error(c, constants.ProviderMembersRoute+"/new", "Invalid form data")
	}
	m := &models.Member{ProviderID: a.ProviderID}
	form.apply(m)

	uniqueID := models.NormalizeUniqueID(form.UniqueID)
	if uniqueID == "" {
		generated, err := pc.uniqueMemberCode(a.ProviderID)
		if err != nil {
			log.Errorf("[Provider] Generate member code failed: %v", err)
			return flash.Error(c, constants.ProviderMembersRoute+"/new", msgInternal)
		}
		uniqueID = generated
	} else if exists, err := pc.d.Repos.Member.UniqueIDExists(a.ProviderID, uniqueID); err != nil {
		return flash.Error(c, constants.ProviderMembersRoute+"/new", msgInternal)
	} else if exists {
		return pc.memberFormError(c, m, "A member with this ID already exists")
	}
	m.UniqueID = uniqueID

	if err := m.Validate(); err != nil {
		return pc.memberFormError(c, m, validationMessage(err))
	}
	if err := pc.d.Repos.Member.Create(m); err != nil {
		log.Errorf("[Provider] Create member failed: %v", err)
		return flash.Error(c, constants.ProviderMembersRoute+"/new", msgInternal)
	}
	return flash.Success(c, memberPath(m.ID)+"/fees", "Member added. Set up their fee plans.")
}

// uniqueMemberCode draws member codes until one is free.
func (pc *ProviderController) uniqueMemberCode(providerID uint) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := codes.GenerateMemberCode()
		if err != nil {
			return "", err
		}
		exists, err := pc.d.Repos.Member.UniqueIDExists(providerID, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a member code")
}

func (pc *ProviderController) memberFormError(c *fiber.Ctx, m *models.Member, msg string) error {
	c.Status(fiber.StatusUnprocessableEntity)
	flash.Set(c, fiber.Map{"type": "error", "message": msg})
	title := "Add member"
	if m.ID != 0 {
		title = "Edit member"
	}
	return render(c, "provider/member_form", title, fiber.Map{"Member": m})
}

// HandleMemberEdit renders the form of an existing member.
func (pc *ProviderController) HandleMemberEdit(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	m, err := pc.d.Repos.Member.GetByID(a.ProviderID, parseID(c.Params("memberId")))
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "provider/member_form", "Edit member", fiber.Map{"Member": m})
}

// HandleMemberUpdate saves the member form. The unique id never changes.
func (pc *ProviderController) HandleMemberUpdate(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	m, err := pc.d.Repos.Member.GetByID(a.ProviderID, parseID(c.Params("memberId")))
	if err != nil {
		return pageError(c, err)
	}
	var form memberForm
	if err := c.BodyParser(&form); err != nil {
		return flash.Error(c, memberPath(m.ID)+"/edit", "Invalid form data")
	}
	form.apply(m)
	if err := m.Validate(); err != nil {
		return pc.memberFormError(c, m, validationMessage(err))
	}
	if err := pc.d.Repos.Member.Update(m); err != nil {
		log.Errorf("[Provider] Update member %d failed: %v", m.ID, err)
		return flash.Error(c, memberPath(m.ID)+"/edit", msgInternal)
	}
	return flash.Success(c, constants.ProviderMembersRoute, "Member updated")
}

// HandleMemberDelete removes a member.
func (pc *ProviderController) HandleMemberDelete(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	if err := pc.d.Repos.Member.Delete(a.ProviderID, parseID(c.Params("memberId"))); err != nil {
		log.Errorf("[Provider] Delete member failed: %v", err)
		return flash.Error(c, constants.ProviderMembersRoute, msgInternal)
	}
	return flash.Success(c, constants.ProviderMembersRoute, "Member removed")
}

func (pc *ProviderController) editor(c *fiber.Ctx) feeEditor {
	a := usercontext.GetActor(c)
	memberID := parseID(c.Params("memberId"))
	return editorFor(c, pc.d, a.ProviderID, memberID, memberPath(memberID)+"/fees")
}

// HandleFeeEditor renders a member's fee plan grid.
func (pc *ProviderController) HandleFeeEditor(c *fiber.Ctx) error {
	return pc.editor(c).show(c)
}

// HandleFeeEditorAction applies a grid submission.
func (pc *ProviderController) HandleFeeEditorAction(c *fiber.Ctx) error {
	return pc.editor(c).action(c)
}

// HandleKYC renders the verification forms, or the status page once
// documents are under review.
func (pc *ProviderController) HandleKYC(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	view, err := pc.d.KYC.Get(c.UserContext(), a, a.ProviderID)
	if err != nil {
		return pageError(c, err)
	}
	if view.Status == kyc.StatusProcessing || view.Status == kyc.StatusVerified {
		return c.Redirect(constants.ProviderKYCStatusRoute)
	}
	provider, err := pc.d.Repos.Provider.GetByID(a.ProviderID)
	if err != nil {
		return pageError(c, err)
	}
	return pc.renderKYCForm(c, provider, view, nil)
}

func (pc *ProviderController) renderKYCForm(c *fiber.Ctx, p *models.Provider, view *kyc.View, fields kyc.ValidationErrors) error {
	reqs := make(map[kyc.EntityType]kyc.Requirements, len(kyc.EntityTypes))
	for _, t := range kyc.EntityTypes {
		reqs[t] = kyc.RequirementsFor(t)
	}
	return render(c, "provider/kyc", "Verification", fiber.Map{
		"Provider":     p,
		"KYC":          view,
		"Individual":   p.Type == models.ProviderTypeIndividual,
		"EntityTypes":  kyc.EntityTypes,
		"Requirements": reqs,
		"Errors":       fields,
	})
}

// HandleKYCSubmit accepts the multipart form matching the provider type.
func (pc *ProviderController) HandleKYCSubmit(c *fiber.Ctx) error {
	ctx := c.UserContext()
	a := usercontext.GetActor(c)
	provider, err := pc.d.Repos.Provider.GetByID(a.ProviderID)
	if err != nil {
		return pageError(c, err)
	}
	docs := kycDocuments(c)
	if provider.Type == models.ProviderTypeIndividual {
		var form kyc.IndividualForm
		if err := c.BodyParser(&form); err != nil {
			return flash.Error(c, constants.ProviderKYCRoute, "Invalid form data")
		}
		_, err = pc.d.KYC.SubmitIndividual(ctx, a, form, docs)
	} else {
		var form kyc.OrganizationForm
		if err := c.BodyParser(&form); err != nil {
			return flash.Error(c, constants.ProviderKYCRoute, "Invalid form data")
		}
		_, err = pc.d.KYC.SubmitOrganization(ctx, a, form, docs)
	}

	var fields kyc.ValidationErrors
	if errors.As(err, &fields) {
		view, viewErr := pc.d.KYC.Get(ctx, a, a.ProviderID)
		if viewErr != nil {
			return pageError(c, viewErr)
		}
		c.Status(fiber.StatusUnprocessableEntity)
		flash.Set(c, fiber.Map{"type": "error", "message": fields.Error()})
		return pc.renderKYCForm(c, provider, view, fields)
	}
	if err != nil {
		return flash.Error(c, constants.ProviderKYCRoute, errorMessage(err))
	}
	return flash.Success(c, constants.ProviderKYCStatusRoute, "Documents submitted for review")
}

// HandleKYCStatus renders the status page of the provider's verification.
func (pc *ProviderController) HandleKYCStatus(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	view, err := pc.d.KYC.Get(c.UserContext(), a, a.ProviderID)
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "provider/kyc_status", view.Page.Title, fiber.Map{"KYC": view})
}

// bankAccountForm is the add-account form.
type bankAccountForm struct {
	AccountNumber     string `form:"accountNumber"`
	IFSC              string `form:"ifsc"`
	AccountHolderName string `form:"accountHolderName"`
	Phone             string `form:"phone"`
	UPIVPA            string `form:"upiVpa"`
	IsDefault         bool   `form:"isDefault"`
}

// HandleBankAccounts lists payout accounts.
func (pc *ProviderController) HandleBankAccounts(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	accounts, err := pc.d.Repos.BankAccount.ListByProvider(a.ProviderID)
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "provider/bank_accounts", "Bank accounts", fiber.Map{"Accounts": accounts})
}

// HandleBankAccountCreate adds a payout account. The first one becomes the default.
func (pc *ProviderController) HandleBankAccountCreate(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	var form bankAccountForm
	if err := c.BodyParser(&form); err != nil {
		return flash.Error(c, constants.ProviderBankRoute, "Invalid form data")
	}
	acc := &models.BankAccount{
		ProviderID:        a.ProviderID,
		AccountNumber:     strings.TrimSpace(form.AccountNumber),
		IFSC:              strings.ToUpper(strings.TrimSpace(form.IFSC)),
		AccountHolderName: strings.TrimSpace(form.AccountHolderName),
		Phone:             strings.TrimSpace(form.Phone),
		UPIVPA:            strings.TrimSpace(form.UPIVPA),
		IsDefault:         form.IsDefault,
	}
	if err := acc.Validate(); err != nil {
		return flash.Error(c, constants.ProviderBankRoute, validationMessage(err))
	}
	if err := pc.d.Repos.BankAccount.Create(acc); err != nil {
		log.Errorf("[Provider] Create bank account failed: %v", err)
		return flash.Error(c, constants.ProviderBankRoute, msgInternal)
	}
	return flash.Success(c, constants.ProviderBankRoute, "Bank account added")
}

// HandleBankAccountDefault makes one account the payout default.
func (pc *ProviderController) HandleBankAccountDefault(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	if err := pc.d.Repos.BankAccount.SetDefault(a.ProviderID, parseID(c.Params("id"))); err != nil {
		return flash.Error(c, constants.ProviderBankRoute, errorMessage(err))
	}
	return flash.Success(c, constants.ProviderBankRoute, "Default account updated")
}

// HandleBankAccountDelete removes a payout account.
func (pc *ProviderController) HandleBankAccountDelete(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	if err := pc.d.Repos.BankAccount.Delete(a.ProviderID, parseID(c.Params("id"))); err != nil {
		return flash.Error(c, constants.ProviderBankRoute, errorMessage(err))
	}
	return flash.Success(c, constants.ProviderBankRoute, "Bank account removed")
}

// HandleSettings shows the integration API key state.
func (pc *ProviderController) HandleSettings(c *fiber.Ctx) error {
	settings, err := pc.d.Repos.User.GetSettings(usercontext.GetUserID(c))
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "provider/settings", "Settings", fiber.Map{"Settings": settings})
}

// HandleAPIKeyGenerate issues a new key and shows it once.
func (pc *ProviderController) HandleAPIKeyGenerate(c *fiber.Ctx) error {
	settings, err := pc.d.Repos.User.GetSettings(usercontext.GetUserID(c))
	if err != nil {
		return pageError(c, err)
	}
	raw, err := settings.IssueAPIKey(time.Now())
	if err != nil {
		log.Errorf("[Provider] Issue API key failed: %v", err)
		return flash.Error(c, constants.ProviderSettingsRoute, msgInternal)
	}
	if err := pc.d.Repos.User.SaveSettings(settings); err != nil {
		log.Errorf("[Provider] Save API key failed: %v", err)
		return flash.Error(c, constants.ProviderSettingsRoute, msgInternal)
	}
	flash.Set(c, fiber.Map{"type": "success", "message": "Copy the key now. It will not be shown again."})
	return render(c, "provider/settings", "Settings", fiber.Map{"Settings": settings, "NewKey": raw})
}

// HandleAPIKeyRevoke disables the current key.
func (pc *ProviderController) HandleAPIKeyRevoke(c *fiber.Ctx) error {
	settings, err := pc.d.Repos.User.GetSettings(usercontext.GetUserID(c))
	if err != nil {
		return pageError(c, err)
	}
	settings.RevokeAPIKey(time.Now())
	if err := pc.d.Repos.User.SaveSettings(settings); err != nil {
		log.Errorf("[Provider] Revoke API key failed: %v", err)
		return flash.Error(c, constants.ProviderSettingsRoute, msgInternal)
	}
	return flash.Success(c, constants.ProviderSettingsRoute, "API key revoked")
}

// HandlePayments lists the provider's transactions with totals.
func (pc *ProviderController) HandlePayments(c *fiber.Ctx) error {
	f, err := billing.ParseHistoryFilter(c.Query("page"), c.Query("limit"), c.Query("status"),
		c.Query("from"), c.Query("to"), c.Query("search"))
	if err != nil {
		return flash.Error(c, "/provider/payments", err.Error())
	}
	page, err := pc.d.Payments.History(c.UserContext(), usercontext.GetActor(c), f)
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "provider/payments", "Payments", fiber.Map{"History": page, "Filter": f})
}

// validationMessage turns validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
