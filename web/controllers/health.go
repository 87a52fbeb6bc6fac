package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"gorm.io/gorm"
)

type HealthController struct {
	conn      *gorm.DB
	startedAt time.Time
}

func NewHealthController(conn *gorm.DB) *HealthController {
	return &HealthController{conn: conn, startedAt: time.Now()}
}

// Health reports database reachability and a host load snapshot.
func (hc *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	dbState := "ok"
	if sqlDB, err := hc.conn.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status = http.StatusServiceUnavailable
		dbState = "unreachable"
	}

	body := gin.H{
		"status": http.StatusText(status),
		"db":     dbState,
		"uptime": time.Since(hc.startedAt).Round(time.Second).String(),
	}

	// host metrics are best effort
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		body["cpu_percent"] = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		body["mem_percent"] = vm.UsedPercent
	}

	c.JSON(status, body)
}
