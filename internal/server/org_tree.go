package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/orgchart/internal/export"
	memberdomain "github.com/smallbiznis/orgchart/internal/member/domain"
	"go.uber.org/zap"
)

// reparentRequest carries the new manager. A missing or null reports_to
// promotes the member.
type reparentRequest struct {
	ReportsTo *string `json:"reports_to"`
}

type reparentValidation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) GetOrgTree(c *gin.Context) {
	tree, err := s.memberSvc.Tree(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": memberdomain.NewTreeView(tree)})
}

// ValidateReparent is the dry run behind drag-hover feedback. Rejections are
// reported in the body rather than as an error status.
func (s *Server) ValidateReparent(c *gin.Context) {
	req, ok := bindReparentRequest(c)
	if !ok {
		return
	}

	err := s.memberSvc.ValidateReparent(c.Request.Context(), memberdomain.ReparentRequest{
		MemberID:  strings.TrimSpace(c.Param("id")),
		ReportsTo: req.ReportsTo,
	})
	if err != nil {
		if code, rejected := reparentRejectionCode(err); rejected {
			c.JSON(http.StatusOK, gin.H{"data": reparentValidation{Valid: false, Reason: code}})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": reparentValidation{Valid: true}})
}

func (s *Server) ReparentMember(c *gin.Context) {
	req, ok := bindReparentRequest(c)
	if !ok {
		return
	}

	tree, err := s.memberSvc.Reparent(c.Request.Context(), memberdomain.ReparentRequest{
		MemberID:  strings.TrimSpace(c.Param("id")),
		ReportsTo: req.ReportsTo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": memberdomain.NewTreeView(tree)})
}

func (s *Server) ExportOrgTree(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tree, err := s.memberSvc.Tree(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := export.Render(format, tree, s.clock.Now())
	if err != nil {
		s.log.Error("org tree export failed", zap.String("format", string(format)), zap.Error(err))
		AbortWithError(c, ErrInternal)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

func bindReparentRequest(c *gin.Context) (reparentRequest, bool) {
	var req reparentRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, true
		}
		AbortWithError(c, invalidRequestError())
		return req, false
	}
	return req, true
}
