package admin

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"flagarena/server/scoring"
)

// HandleExportLeaderboard 导出排行榜为Excel文件
func HandleExportLeaderboard(c *gin.Context, engine *scoring.Engine) {
	standings, err := engine.Rank(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR", "message": err.Error()})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	headers := []string{"排名", "队伍", "总分", "解题数", "最后解题时间"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, s := range standings {
		lastSolve := ""
		if s.LastSolveAt != nil {
			lastSolve = s.LastSolveAt.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{s.Rank, s.TeamName, s.TotalScore, s.SolveCount, lastSolve}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	f.SetColWidth(sheet, "B", "B", 24)
	f.SetColWidth(sheet, "E", "E", 22)

	filename := fmt.Sprintf("leaderboard_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)

	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR", "message": err.Error()})
	}
}
