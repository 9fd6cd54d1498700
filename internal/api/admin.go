package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fabrika/internal/schema"
	"fabrika/internal/store"
)

// Административный API: авторинг определений endpoint'ов. Работает в рамках
// владельца из bearer-токена, чужие определения отсюда недостижимы.

type fieldDef struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Required bool    `json:"required"`
	Default  *string `json:"default"`
}

type endpointDef struct {
	Name   string     `json:"name"`
	Method string     `json:"method"`
	Fields []fieldDef `json:"fields"`
}

// toEndpoint строит определение и прогоняет его через линтер схем.
// Ошибки здесь — дефекты авторинга (400), не данных.
func (d *endpointDef) toEndpoint(ownerID string) (*schema.Endpoint, []schema.Issue) {
	ep := &schema.Endpoint{
		OwnerID: ownerID,
		Name:    strings.TrimSpace(d.Name),
		Method:  strings.ToUpper(strings.TrimSpace(d.Method)),
		Fields:  make([]schema.Field, 0, len(d.Fields)),
	}
	for _, f := range d.Fields {
		ep.Fields = append(ep.Fields, schema.Field{
			Name:     strings.TrimSpace(f.Name),
			Type:     schema.FieldType(f.Type),
			Required: f.Required,
			Default:  f.Default,
		})
	}
	if issues := schema.LintDefinition(ep); len(issues) > 0 {
		return nil, issues
	}
	// после линта теги типов валидны — нормализуем регистр
	for i := range ep.Fields {
		t, _ := schema.ParseFieldType(string(ep.Fields[i].Type))
		ep.Fields[i].Type = t
	}
	return ep, nil
}

// GET /api/_admin/endpoints
func AdminListEndpoints(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := CurrentOwner(c)
		eps, err := st.ListEndpoints(c.Request.Context(), owner.ID)
		if err != nil {
			storageError(c, err)
			return
		}
		if eps == nil {
			eps = []*schema.Endpoint{}
		}
		c.JSON(http.StatusOK, eps)
	}
}

// POST /api/_admin/endpoints
func AdminCreateEndpoint(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := CurrentOwner(c)

		var def endpointDef
		if err := c.ShouldBindJSON(&def); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		ep, issues := def.toEndpoint(owner.ID)
		if issues != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid definition", "issues": issues})
			return
		}

		err := st.CreateEndpoint(c.Request.Context(), ep)
		if errors.Is(err, store.ErrExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Endpoint already exists"})
			return
		}
		if err != nil {
			storageError(c, err)
			return
		}
		c.JSON(http.StatusCreated, ep)
	}
}

// GET /api/_admin/endpoints/:name
func AdminGetEndpoint(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := CurrentOwner(c)
		ep, err := st.ResolveEndpoint(c.Request.Context(), owner.ID, c.Param("name"))
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
			return
		}
		if err != nil {
			storageError(c, err)
			return
		}
		c.JSON(http.StatusOK, ep)
	}
}

// PUT /api/_admin/endpoints/:name — переопределение имени/метода/полей.
// Blob'ы документов остаются как были: типизация действует только на записи.
func AdminUpdateEndpoint(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := CurrentOwner(c)
		name := c.Param("name")

		var def endpointDef
		if err := c.ShouldBindJSON(&def); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		if strings.TrimSpace(def.Name) == "" {
			def.Name = name
		}
		ep, issues := def.toEndpoint(owner.ID)
		if issues != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid definition", "issues": issues})
			return
		}

		err := st.UpdateEndpoint(c.Request.Context(), owner.ID, name, ep)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
			return
		}
		if errors.Is(err, store.ErrExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Endpoint already exists"})
			return
		}
		if err != nil {
			storageError(c, err)
			return
		}
		c.JSON(http.StatusOK, ep)
	}
}

// DELETE /api/_admin/endpoints/:name — определение, поля и документы каскадом
func AdminDeleteEndpoint(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := CurrentOwner(c)
		err := st.DeleteEndpoint(c.Request.Context(), owner.ID, c.Param("name"))
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
			return
		}
		if err != nil {
			storageError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	}
}
