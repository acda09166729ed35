package controllers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/app/repository"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/constants"
	"github.com/ManuelReschke/FeeBook/internal/pkg/flash"
	"github.com/ManuelReschke/FeeBook/internal/pkg/jobqueue"
	"github.com/ManuelReschke/FeeBook/internal/pkg/kyc"
	"github.com/ManuelReschke/FeeBook/internal/pkg/security"
	"github.com/ManuelReschke/FeeBook/internal/pkg/usercontext"
)

const (
	adminPageSize = 25
	// documentLinkTTL bounds how long a signed document link stays valid.
	documentLinkTTL = 10 * time.Minute
)

// AdminController serves the back office.
type AdminController struct {
	d *Deps
}

func NewAdminController(d *Deps) *AdminController {
	return &AdminController{d: d}
}

func pages(total int64, limit int) int {
	return int((total + int64(limit) - 1) / int64(limit))
}

// HandleDashboard renders the cached platform statistics.
func (ac *AdminController) HandleDashboard(c *fiber.Ctx) error {
	stats, err := ac.d.Stats.Dashboard(c.UserContext())
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "admin/dashboard", "Dashboard", fiber.Map{"Stats": stats})
}

// HandleDashboardRefresh rebuilds the statistics snapshot.
func (ac *AdminController) HandleDashboardRefresh(c *fiber.Ctx) error {
	if _, err := ac.d.Stats.Refresh(c.UserContext()); err != nil {
		log.Errorf("[Admin] Refresh statistics failed: %v", err)
		return flash.Error(c, constants.AdminRoute, msgInternal)
	}
	return flash.Success(c, constants.AdminRoute, "Statistics refreshed")
}

// HandleProviders lists providers filtered by status and search text.
func (ac *AdminController) HandleProviders(c *fiber.Ctx) error {
	page := queryInt(c, "page", 1)
	filter := repository.ProviderFilter{
		Status: strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		Query:  strings.TrimSpace(c.Query("q")),
		Offset: (page - 1) * adminPageSize,
		Limit:  adminPageSize,
	}
	providers, total, err := ac.d.Repos.Provider.List(filter)
	if err != nil {
		return pageError(c, err)
	}
	counts, err := ac.d.Repos.Provider.CountByStatus()
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "admin/providers", "Providers", fiber.Map{
		"Providers":  providers,
		"Filter":     filter,
		"Counts":     counts,
		"Page":       page,
		"TotalPages": pages(total, adminPageSize),
		"Statuses": []string{
			models.ProviderStatusPending, models.ProviderStatusApproved,
			models.ProviderStatusRejected, models.ProviderStatusSuspended,
		},
	})
}

// HandleProviderStatus moves a provider to another lifecycle status.
func (ac *AdminController) HandleProviderStatus(c *fiber.Ctx) error {
	status := strings.ToUpper(strings.TrimSpace(c.FormValue("status")))
	switch status {
	case models.ProviderStatusPending, models.ProviderStatusApproved,
		models.ProviderStatusRejected, models.ProviderStatusSuspended:
	default:
		return flash.Error(c, constants.AdminProvidersRoute, "Unknown provider status")
	}
	id := parseID(c.Params("id"))
	if err := ac.d.Repos.Provider.UpdateStatus(id, status); err != nil {
		return flash.Error(c, constants.AdminProvidersRoute, errorMessage(err))
	}
	log.Infof("[Admin] Provider %d set to %s by user %d", id, status, usercontext.GetUserID(c))
	return flash.Success(c, constants.AdminProvidersRoute, "Provider status updated")
}

// HandleProviderMembers lists the members of one provider.
func (ac *AdminController) HandleProviderMembers(c *fiber.Ctx) error {
	providerID := parseID(c.Params("id"))
	provider, err := ac.d.Repos.Provider.GetByID(providerID)
	if err != nil {
		return pageError(c, err)
	}
	page := queryInt(c, "page", 1)
	q := strings.TrimSpace(c.Query("q"))
	members, total, err := ac.d.Repos.Member.ListByProvider(providerID, q, (page-1)*adminPageSize, adminPageSize)
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "admin/provider_members", provider.Name, fiber.Map{
		"Provider":   provider,
		"Members":    members,
		"Query":      q,
		"Page":       page,
		"TotalPages": pages(total, adminPageSize),
	})
}

func (ac *AdminController) editor(c *fiber.Ctx) feeEditor {
	providerID := parseID(c.Params("id"))
	memberID := parseID(c.Params("memberId"))
	base := fmt.Sprintf("%s/%d/members/%d/fees", constants.AdminProvidersRoute, providerID, memberID)
	return editorFor(c, ac.d, providerID, memberID, base)
}

// HandleFeeEditor renders a member's fee plans. Moderators see them read-only.
func (ac *AdminController) HandleFeeEditor(c *fiber.Ctx) error {
	return ac.editor(c).show(c)
}

// HandleFeeEditorAction applies a grid submission.
func (ac *AdminController) HandleFeeEditorAction(c *fiber.Ctx) error {
	return ac.editor(c).action(c)
}

// HandleKYCQueue lists verifications waiting for review.
func (ac *AdminController) HandleKYCQueue(c *fiber.Ctx) error {
	page := queryInt(c, "page", 1)
	status := strings.ToUpper(strings.TrimSpace(c.Query("status", string(kyc.StatusProcessing))))
	list, total, err := ac.d.KYC.List(c.UserContext(), usercontext.GetActor(c), status, page, adminPageSize)
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "admin/kyc_queue", "Verifications", fiber.Map{
		"Verifications": list,
		"Status":        status,
		"Page":          page,
		"TotalPages":    pages(total, adminPageSize),
	})
}

type documentLink struct {
	Field string
	URL   string
}

// HandleKYCDetail shows one verification with signed links to its documents.
func (ac *AdminController) HandleKYCDetail(c *fiber.Ctx) error {
	v, err := ac.d.KYC.GetByID(c.UserContext(), usercontext.GetActor(c), parseID(c.Params("id")))
	if err != nil {
		return pageError(c, err)
	}
	refs := kyc.DocumentKeys(v)
	links := make([]documentLink, 0, len(refs))
	for _, ref := range refs {
		token, err := security.GenerateDocumentToken(v.ID, ref.Key, documentLinkTTL, ac.d.DocumentSecret)
		if err != nil {
			log.Errorf("[Admin] Sign document %s failed: %v", ref.Key, err)
			continue
		}
		links = append(links, documentLink{Field: ref.Field, URL: constants.AdminKYCRoute + "/documents/" + token})
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Field < links[j].Field })
	return render(c, "admin/kyc_detail", "Verification", fiber.Map{
		"Verification": v,
		"Documents":    links,
		"Decisions":    []kyc.Decision{kyc.DecisionApprove, kyc.DecisionReject, kyc.DecisionRequestInfo},
	})
}

// HandleKYCReview records a review decision from the detail page.
func (ac *AdminController) HandleKYCReview(c *fiber.Ctx) error {
	id := parseID(c.Params("id"))
	back := fmt.Sprintf("%s/%d", constants.AdminKYCRoute, id)
	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		return flash.Error(c, back, "Invalid form data")
	}
	if _, err := ac.d.KYC.Review(c.UserContext(), usercontext.GetActor(c), id, req.Decision, req.Remarks); err != nil {
		return flash.Error(c, back, errorMessage(err))
	}
	return flash.Success(c, constants.AdminKYCRoute, "Review saved")
}

// HandleKYCDocument streams a document named by a signed token.
func (ac *AdminController) HandleKYCDocument(c *fiber.Ctx) error {
	claims, err := security.VerifyDocumentToken(c.Params("token"), ac.d.DocumentSecret)
	if err != nil {
		return c.Status(fiber.StatusForbidden).SendString("Link expired or invalid")
	}
	body, obj, err := ac.d.KYC.OpenDocument(c.UserContext(), claims.Key)
	if err != nil {
		status, _ := classify(err)
		return c.Status(status).SendString(errorMessage(err))
	}
	c.Set(fiber.HeaderContentType, obj.ContentType)
	c.Set(fiber.HeaderCacheControl, "private, no-store")
	c.Set("X-Content-Type-Options", "nosniff")
	return c.SendStream(body, int(obj.Size))
}

// HandleUsers lists back-office and provider accounts.
func (ac *AdminController) HandleUsers(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	page := queryInt(c, "page", 1)
	users, total, err := ac.d.Repos.User.List(q, (page-1)*adminPageSize, adminPageSize)
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "admin/users", "Users", fiber.Map{
		"Users":      users,
		"Query":      q,
		"Page":       page,
		"TotalPages": pages(total, adminPageSize),
		"Roles":      []string{models.ROLE_ADMIN, models.ROLE_MODERATOR, models.ROLE_PROVIDER},
		"States":     []string{models.STATUS_ACTIVE, models.STATUS_INACTIVE, models.STATUS_DISABLED},
	})
}

// HandleUserUpdate changes a user's role or status. Admins cannot demote or
// disable themselves.
func (ac *AdminController) HandleUserUpdate(c *fiber.Ctx) error {
	a := usercontext.GetActor(c)
	if a.Role != actor.RoleAdmin {
		return renderError(c, fiber.StatusForbidden, actor.ErrForbidden.Error())
	}
	const back = "/admin/users"
	user, err := ac.d.Repos.User.GetByID(parseID(c.Params("id")))
	if err != nil {
		return flash.Error(c, back, errorMessage(err))
	}
	role := strings.ToLower(strings.TrimSpace(c.FormValue("role", user.Role)))
	status := strings.ToLower(strings.TrimSpace(c.FormValue("status", user.Status)))
	if user.ID == a.UserID && (role != models.ROLE_ADMIN || status != models.STATUS_ACTIVE) {
		return flash.Error(c, back, "You cannot demote or disable your own account")
	}
	if role == models.ROLE_PROVIDER && user.ProviderID == nil {
		return flash.Error(c, back, "Only accounts linked to a provider can have the provider role")
	}
	user.Role = role
	user.Status = status
	if err := user.Validate(); err != nil {
		return flash.Error(c, back, validationMessage(err))
	}
	if err := ac.d.Repos.User.Update(user); err != nil {
		log.Errorf("[Admin] Update user %d failed: %v", user.ID, err)
		return flash.Error(c, back, msgInternal)
	}
	log.Infof("[Admin] User %d set to role=%s status=%s by user %d", user.ID, role, status, a.UserID)
	return flash.Success(c, back, "User updated")
}

// HandleTransactions lists gateway orders by status.
func (ac *AdminController) HandleTransactions(c *fiber.Ctx) error {
	page := queryInt(c, "page", 1)
	status := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	list, total, err := ac.d.Repos.Transaction.List(status, (page-1)*adminPageSize, adminPageSize)
	if err != nil {
		return pageError(c, err)
	}
	counts, err := ac.d.Repos.Transaction.CountByStatus()
	if err != nil {
		return pageError(c, err)
	}
	return render(c, "admin/transactions", "Transactions", fiber.Map{
		"Transactions": list,
		"Counts":       counts,
		"Status":       status,
		"Page":         page,
		"TotalPages":   pages(total, adminPageSize),
	})
}

// HandleRunSweep runs the overdue sweep or the order reconcile on demand.
func (ac *AdminController) HandleRunSweep(c *fiber.Ctx) error {
	switch c.FormValue("kind") {
	case "overdue":
		n := ac.d.Sweeps.RunOverdueSweepOnce()
		return flash.Success(c, constants.AdminRoute, fmt.Sprintf("%d fee plans marked overdue", n))
	case "reconcile":
		n := ac.d.Sweeps.RunReconcileOnce()
		return flash.Success(c, constants.AdminRoute, fmt.Sprintf("%d pending orders reconciled", n))
	}
	return flash.Error(c, constants.AdminRoute, "Unknown task")
}

// QueueItem is one Redis key shown by the queue inspector.
type QueueItem struct {
	repository.KeyInfo
	Family string
}

// inspectedPatterns are the key families the inspector lists.
var inspectedPatterns = []string{
	jobqueue.JobKeyPrefix + "*",
	jobqueue.JobQueueKey,
	jobqueue.JobProcessingKey,
	jobqueue.JobDelayedKey,
	jobqueue.JobStatsKey,
	"feeplan:editor:*",
	"membership:wizard:*",
	"membership:search:*",
	"statistics:*",
}

// HandleQueues renders the cache and job queue inspector.
func (ac *AdminController) HandleQueues(c *fiber.Ctx) error {
	items, err := ac.queueItems(c.UserContext())
	if err != nil {
		log.Warnf("[Admin] Queue inspection failed: %v", err)
		items = []QueueItem{}
	}
	return render(c, "admin/queues", "Cache & Queue", fiber.Map{"Items": items})
}

// HandleQueuesData returns the inspector table for HTMX refreshes.
func (ac *AdminController) HandleQueuesData(c *fiber.Ctx) error {
	items, err := ac.queueItems(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(errorMessage(err))
	}
	return c.Render("admin/partials/queue_table", fiber.Map{"Items": items})
}

// HandleQueueDelete deletes one inspected key.
func (ac *AdminController) HandleQueueDelete(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).SendString("key is required")
	}
	n, err := ac.d.Repos.Queue.DeleteKey(c.UserContext(), key)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(errorMessage(err))
	}
	if n == 0 {
		return c.Status(fiber.StatusNotFound).SendString("key not found")
	}
	return c.SendString("")
}

func (ac *AdminController) queueItems(ctx context.Context) ([]QueueItem, error) {
	infos, err := ac.d.Repos.Queue.Inspect(ctx, inspectedPatterns)
	if err != nil {
		return nil, err
	}
	items := make([]QueueItem, 0, len(infos))
	for _, info := range infos {
		info.Value = truncate(info.Value, 160)
		items = append(items, QueueItem{KeyInfo: info, Family: keyFamily(info.Key)})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Family < items[j].Family })
	return items, nil
}

func keyFamily(key string) string {
	switch {
	case strings.HasPrefix(key, jobqueue.JobKeyPrefix):
		return "job"
	case key == jobqueue.JobQueueKey:
		return "job_queue"
	case key == jobqueue.JobProcessingKey:
		return "job_processing"
	case key == jobqueue.JobDelayedKey:
		return "job_delayed"
	case key == jobqueue.JobStatsKey:
		return "job_stats"
	case strings.HasPrefix(key, "feeplan:editor:"):
		return "fee_editor"
	case strings.HasPrefix(key, "membership:wizard:"):
		return "wizard"
	case strings.HasPrefix(key, "membership:search:"):
		return "search"
	case strings.HasPrefix(key, "statistics:"):
		return "statistics"
	}
	return "unknown"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
