package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fabrika/internal/store"
)

const ownerKey = "owner"

// AuthRequired резолвит bearer-токен во владельца. Диспетчер и админка
// дальше видят только доверенный owner id — сами токены туда не попадают.
func AuthRequired(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := strings.TrimSpace(c.GetHeader("Authorization"))
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}
		owner, err := st.OwnerByToken(c.Request.Context(), strings.TrimSpace(token))
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Storage error"})
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

func CurrentOwner(c *gin.Context) store.Owner {
	o, _ := c.Get(ownerKey)
	owner, _ := o.(store.Owner)
	return owner
}

type registerReq struct {
	Login string `json:"login"`
}

// POST /auth/register — выдаёт токен один раз, дальше он хранится
// только на сервере.
func RegisterHandler(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		login := strings.TrimSpace(req.Login)
		if login == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "login is required"})
			return
		}

		owner, err := st.CreateOwner(c.Request.Context(), login)
		if errors.Is(err, store.ErrExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "login already taken"})
			return
		}
		if err != nil {
			storageError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"owner_id": owner.ID,
			"login":    owner.Login,
			"token":    owner.Token,
		})
	}
}
