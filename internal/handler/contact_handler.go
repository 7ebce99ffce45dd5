package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/folio/internal/middleware"
	"github.com/folio/internal/service"
)

const contactSentMessage = "Message sent! Thanks for reaching out. I'll get back to you soon."

// SubmitContact stores and forwards a contact form message.
func (a *API) SubmitContact(c *gin.Context) {
	if a.contact == nil {
		a.contactResult(c, http.StatusServiceUnavailable, "error", "The contact form is not available right now.")
		return
	}

	_, err := a.contact.Submit(c.Request.Context(), service.ContactInput{
		Name:     c.PostForm("name"),
		Email:    c.PostForm("email"),
		Message:  c.PostForm("message"),
		ClientIP: c.ClientIP(),
	})
	switch {
	case err == nil:
		a.contactResult(c, http.StatusOK, "success", contactSentMessage)
	case service.IsContactValidation(err):
		a.contactResult(c, http.StatusBadRequest, "error", "Failed to send message: "+err.Error())
	case errors.Is(err, service.ErrContactDeliveryFailed):
		c.Error(err)
		a.contactResult(c, http.StatusBadGateway, "error", "Your message was saved but could not be delivered. Please try again later.")
	default:
		c.Error(err)
		a.contactResult(c, http.StatusInternalServerError, "error", "Failed to send message, please try again later.")
	}
}

// ContactRateLimited renders the rejection for the contact rate limiter.
func (a *API) ContactRateLimited(c *gin.Context, _ middleware.Decision, message string) {
	a.contactResult(c, http.StatusTooManyRequests, "error", message)
}

func (a *API) contactResult(c *gin.Context, status int, level, message string) {
	if isHTMX(c) {
		a.renderHTML(c, status, "contact_result.html", gin.H{
			"sent":   level == "success",
			"toasts": []toast{{Level: level, Message: message}},
		})
		return
	}
	addToast(c, level, message)
	c.Redirect(http.StatusSeeOther, "/#contact")
}

// ListContactMessages returns stored messages for the admin, newest first.
func (a *API) ListContactMessages(c *gin.Context) {
	if a.contact == nil {
		respondError(c, http.StatusServiceUnavailable, "contact messages are not available")
		return
	}
	result, err := a.contact.List(c.Request.Context(), parseIntQuery(c, "page", 1), parseIntQuery(c, "per_page", 20))
	if err != nil {
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "failed to load contact messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       result.Items,
		"total":       result.Total,
		"total_pages": result.TotalPages,
		"page":        result.Page,
		"per_page":    result.PerPage,
	})
}
