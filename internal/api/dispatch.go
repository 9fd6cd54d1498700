package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"fabrika/internal/schema"
	"fabrika/internal/store"
)

// DispatchHandler — динамический диспетчер: ANY /api/:endpoint.
// Сначала резолвим endpoint по (владелец, имя) — неизвестное имя даёт 404
// при любом глаголе, в том числе неподдерживаемом. Потом ветвимся по глаголу;
// всё вне GET/POST/PUT/DELETE — 405, к схеме уже не обращаемся.
func DispatchHandler(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := CurrentOwner(c)
		name := c.Param("endpoint")

		ep, err := st.ResolveEndpoint(c.Request.Context(), owner.ID, name)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
			return
		}
		if err != nil {
			storageError(c, err)
			return
		}

		switch c.Request.Method {
		case http.MethodGet:
			listDocuments(c, st, ep)
		case http.MethodPost:
			createDocument(c, st, ep)
		case http.MethodPut:
			updateDocument(c, st, ep)
		case http.MethodDelete:
			deleteDocument(c, st, ep)
		default:
			c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
		}
	}
}

// POST /api/:endpoint
func createDocument(c *gin.Context, st store.Store, ep *schema.Endpoint) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	payload, fe := BuildCreatePayload(ep.Fields, body)
	if fe != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []FieldError{*fe}})
		return
	}

	id, err := st.CreateDocument(c.Request.Context(), ep.ID, payload)
	if err != nil {
		storageError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "created", "id": id})
}

// GET /api/:endpoint
func listDocuments(c *gin.Context, st store.Store, ep *schema.Endpoint) {
	docs, err := st.ListDocuments(c.Request.Context(), ep.ID)
	if err != nil {
		storageError(c, err)
		return
	}
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, flatten(d))
	}
	c.JSON(http.StatusOK, out)
}

// PUT /api/:endpoint?id={doc_id}
func updateDocument(c *gin.Context, st store.Store, ep *schema.Endpoint) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []FieldError{*ferr(ErrMissingID, "id", "Query parameter 'id' is required")},
		})
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	// NotFound обязан сработать до любой мутации
	doc, err := st.GetDocument(c.Request.Context(), ep.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	if err != nil {
		storageError(c, err)
		return
	}

	patch, fe := BuildUpdatePatch(ep.Fields, body)
	if fe != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []FieldError{*fe}})
		return
	}

	// merge поверх существующего payload; непереданные поля не трогаем.
	// Last-write-wins: параллельный PUT может молча перетереть — так задумано.
	merged := make(map[string]any, len(doc.Payload)+len(patch))
	for k, v := range doc.Payload {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}

	if err := st.ReplaceDocument(c.Request.Context(), ep.ID, id, merged); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

// DELETE /api/:endpoint?id={doc_id}
func deleteDocument(c *gin.Context, st store.Store, ep *schema.Endpoint) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []FieldError{*ferr(ErrMissingID, "id", "Query parameter 'id' is required")},
		})
		return
	}

	err := st.DeleteDocument(c.Request.Context(), ep.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	if err != nil {
		storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// storageError — ошибки хранилища не ретраим и не показываем наружу:
// деталь в лог, клиенту generic 500.
func storageError(c *gin.Context, err error) {
	log.Printf("storage error: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage error"})
}
