package handlers

import (
	"log"
	"net/http"

	"realtime-pollchat-backend/database"
	"realtime-pollchat-backend/models"

	"github.com/gin-gonic/gin"
)

// CreatePollInput defines the expected input structure for creating a poll
type CreatePollInput struct {
	Question string   `json:"question" binding:"required"`
	Options  []string `json:"options" binding:"required,min=2,dive,required"`
}

// CreatePoll handles the creation of a new poll.
// 需要Bearer令牌；创建成功后向全体连接广播newPoll。
func CreatePoll(c *gin.Context) {
	var input CreatePollInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetUint("userID")

	options := make([]models.PollOption, len(input.Options))
	for i, text := range input.Options {
		options[i] = models.PollOption{Text: text}
	}

	poll := models.Poll{
		Question:    input.Question,
		Options:     options,
		CreatedByID: userID,
	}

	if err := database.CreatePoll(c.Request.Context(), &poll); err != nil {
		log.Printf("创建投票失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating poll"})
		return
	}

	// 重新加载以带上创建者信息
	created, err := database.GetPollByID(c.Request.Context(), poll.ID)
	if err != nil {
		log.Printf("警告: 创建后重新加载投票失败: %v", err)
		created = &poll
	}

	payload := pollToPayload(created)

	if h := GetHub(); h != nil {
		h.BroadcastAll("newPoll", payload)
	}

	c.JSON(http.StatusOK, payload)
}

// GetPolls retrieves a list of all polls with options and creator
func GetPolls(c *gin.Context) {
	polls, err := database.ListPolls(c.Request.Context())
	if err != nil {
		log.Printf("获取投票列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching polls"})
		return
	}

	c.JSON(http.StatusOK, pollsToPayload(polls))
}
