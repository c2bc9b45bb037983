package handlers

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"markme-server-go/db"
	"markme-server-go/models"
)

// ErrEmptyName is returned for blank class or student names
var ErrEmptyName = errors.New("name cannot be empty")

// APIHandler holds the dependencies for API handlers, like the attendance store
type APIHandler struct {
	Store *db.AttendanceStore
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(store *db.AttendanceStore) *APIHandler {
	return &APIHandler{
		Store: store,
	}
}

// RegisterRoutes mounts every API route on the group
func (h *APIHandler) RegisterRoutes(api *gin.RouterGroup) {
	// Class routes
	api.GET("/classes", h.GetClasses)
	api.GET("/roster", h.GetAllClasses)
	api.POST("/classes", h.AddClass)
	api.PUT("/classes/:className", h.RenameClass)
	api.DELETE("/classes/:className", h.DeleteClass)

	// Student routes within a class
	api.GET("/classes/:className/students", h.GetStudentsByClass)
	api.POST("/classes/:className/students", h.AddStudent)
	api.PUT("/classes/:className/students/:student", h.RenameStudent)
	api.DELETE("/classes/:className/students/:student", h.DeleteStudent)
	api.GET("/classes/:className/random-student", h.GetRandomStudent)

	// Teacher routes
	api.GET("/classes/:className/teacher", h.GetTeacherInfo)
	api.PUT("/classes/:className/teacher", h.SaveTeacherInfo)

	// Attendance routes
	api.GET("/attendance/:date/:className", h.GetAttendance)
	api.PUT("/attendance/:date/:className", h.SaveAttendance)
	api.GET("/classes/:className/attendance", h.GetAttendanceHistory)
	api.GET("/classes/:className/attendance.xlsx", h.ExportAttendance)

	// Import route
	api.POST("/import/students", h.ImportStudents)

	// Index maintenance
	api.GET("/admin/indices", h.CheckIndices)
	api.POST("/admin/indices/rebuild", h.RebuildIndices)

	api.GET("/ping", PingHandler)
}

type classRequest struct {
	ClassName string `json:"className" binding:"required"`
}

type renameRequest struct {
	NewName string `json:"newName" binding:"required"`
}

type studentRequest struct {
	Name string `json:"name" binding:"required"`
}

type teacherRequest struct {
	Teacher     string `json:"teacher"`
	CoTeacher   string `json:"coTeacher"`
	Description string `json:"description"`
}

type studentStatusRequest struct {
	Name   string `json:"Name" binding:"required"`
	Status string `json:"Status"`
}

type attendanceRequest struct {
	Students []studentStatusRequest `json:"students" binding:"required,dive"`
}

func (r attendanceRequest) toModel() []models.StudentAttendance {
	students := make([]models.StudentAttendance, 0, len(r.Students))
	for _, st := range r.Students {
		students = append(students, models.StudentAttendance{Name: st.Name, Status: st.Status})
	}
	return students
}

// cleanName trims a path or body name and rejects blanks
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func storeFailure(c *gin.Context, op string, err error) {
	log.Printf("Error in %s handler: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + op})
}

// --- Class Handlers ---

// GetClasses handles GET /api/classes
func (h *APIHandler) GetClasses(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.GetClasses())
}

// GetAllClasses handles GET /api/roster
func (h *APIHandler) GetAllClasses(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.GetAllClasses())
}

// AddClass handles POST /api/classes
func (h *APIHandler) AddClass(c *gin.Context) {
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	name, err := cleanName(req.ClassName)
	if err != nil {
		badRequest(c, "Class name is required")
		return
	}

	if err := h.Store.AddClass(name); err != nil {
		storeFailure(c, "add class", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"className": name})
}

// RenameClass handles PUT /api/classes/:className
func (h *APIHandler) RenameClass(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	newName, err := cleanName(req.NewName)
	if err != nil {
		badRequest(c, "New class name is required")
		return
	}

	if err := h.Store.RenameClass(c.Param("className"), newName); err != nil {
		storeFailure(c, "rename class", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteClass handles DELETE /api/classes/:className
func (h *APIHandler) DeleteClass(c *gin.Context) {
	if err := h.Store.DeleteClass(c.Param("className")); err != nil {
		storeFailure(c, "delete class", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Student Handlers ---

// GetStudentsByClass handles GET /api/classes/:className/students
func (h *APIHandler) GetStudentsByClass(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.GetStudentsForClass(c.Param("className")))
}

// AddStudent handles POST /api/classes/:className/students
func (h *APIHandler) AddStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	name, err := cleanName(req.Name)
	if err != nil {
		badRequest(c, "Student name is required")
		return
	}

	className := c.Param("className")
	if err := h.Store.AddStudentToClass(className, name); err != nil {
		storeFailure(c, "add student", err)
		return
	}
	c.JSON(http.StatusOK, h.Store.GetStudentsForClass(className))
}

// RenameStudent handles PUT /api/classes/:className/students/:student
func (h *APIHandler) RenameStudent(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	newName, err := cleanName(req.NewName)
	if err != nil {
		badRequest(c, "New student name is required")
		return
	}

	className := c.Param("className")
	if err := h.Store.UpdateStudentInClass(className, c.Param("student"), newName); err != nil {
		storeFailure(c, "rename student", err)
		return
	}
	c.JSON(http.StatusOK, h.Store.GetStudentsForClass(className))
}

// DeleteStudent handles DELETE /api/classes/:className/students/:student
func (h *APIHandler) DeleteStudent(c *gin.Context) {
	className := c.Param("className")
	if err := h.Store.DeleteStudentFromClass(className, c.Param("student")); err != nil {
		storeFailure(c, "delete student", err)
		return
	}
	c.JSON(http.StatusOK, h.Store.GetStudentsForClass(className))
}

// GetRandomStudent handles GET /api/classes/:className/random-student
func (h *APIHandler) GetRandomStudent(c *gin.Context) {
	student, ok := h.Store.GetRandomStudent(c.Param("className"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "No students found in this class"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": student})
}

// --- Teacher Handlers ---

// GetTeacherInfo handles GET /api/classes/:className/teacher
func (h *APIHandler) GetTeacherInfo(c *gin.Context) {
	info, err := h.Store.GetTeacherInfo(c.Param("className"))
	if err != nil {
		storeFailure(c, "load teacher info", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// SaveTeacherInfo handles PUT /api/classes/:className/teacher
func (h *APIHandler) SaveTeacherInfo(c *gin.Context) {
	var req teacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	info := models.ClassTeacherInfo{
		ClassName:   c.Param("className"),
		Teacher:     req.Teacher,
		CoTeacher:   req.CoTeacher,
		Description: req.Description,
	}
	if err := h.Store.SaveTeacherInfo(info); err != nil {
		storeFailure(c, "save teacher info", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// --- Attendance Handlers ---

// GetAttendance handles GET /api/attendance/:date/:className
func (h *APIHandler) GetAttendance(c *gin.Context) {
	day, err := models.ParseDate(c.Param("date"))
	if err != nil {
		badRequest(c, "Date must be YYYY-MM-DD")
		return
	}
	c.JSON(http.StatusOK, h.Store.GetAttendance(day.Time(), c.Param("className")))
}

// SaveAttendance handles PUT /api/attendance/:date/:className
func (h *APIHandler) SaveAttendance(c *gin.Context) {
	day, err := models.ParseDate(c.Param("date"))
	if err != nil {
		badRequest(c, "Date must be YYYY-MM-DD")
		return
	}
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	className := c.Param("className")
	students := req.toModel()
	if err := <-h.Store.SaveAttendanceAsync(day.Time(), className, students); err != nil {
		storeFailure(c, "save attendance", err)
		return
	}
	c.JSON(http.StatusOK, models.ClassAttendance{ClassName: className, Date: day, Students: students})
}

// GetAttendanceHistory handles GET /api/classes/:className/attendance
func (h *APIHandler) GetAttendanceHistory(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.GetAttendanceHistory(c.Param("className")))
}

// ExportAttendance handles GET /api/classes/:className/attendance.xlsx
func (h *APIHandler) ExportAttendance(c *gin.Context) {
	className := c.Param("className")
	var buf bytes.Buffer
	if err := h.Store.ExportAttendanceToExcel(&buf, className); err != nil {
		storeFailure(c, "export attendance", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="attendance.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// --- Import Handler ---

// ImportStudents handles POST /api/import/students
func (h *APIHandler) ImportStudents(c *gin.Context) {
	className, err := cleanName(c.PostForm("className"))
	if err != nil {
		badRequest(c, "Missing 'className' in form data")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		log.Printf("Error getting form file: %v", err)
		badRequest(c, "Error retrieving uploaded file: "+err.Error())
		return
	}
	defer file.Close()

	log.Printf("Received file upload: %s for class: %s", header.Filename, className)

	importedCount, err := h.Store.ImportStudentsFromExcel(file, className)
	if err != nil {
		log.Printf("Error importing students from file %s for class %s: %v", header.Filename, className, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to import students: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Import successful",
		"importedCount": importedCount,
		"className":     className,
	})
}

// --- Index Maintenance ---

// CheckIndices handles GET /api/admin/indices
func (h *APIHandler) CheckIndices(c *gin.Context) {
	problems := h.Store.CheckIndices()
	if problems == nil {
		problems = []db.IndexMismatch{}
	}
	c.JSON(http.StatusOK, gin.H{"consistent": len(problems) == 0, "problems": problems})
}

// RebuildIndices handles POST /api/admin/indices/rebuild
func (h *APIHandler) RebuildIndices(c *gin.Context) {
	if err := h.Store.RebuildClassIndex(); err != nil {
		if errors.Is(err, db.ErrUnreadableIndex) {
			log.Printf("Refusing to rebuild indices: %v", err)
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		storeFailure(c, "rebuild indices", err)
		return
	}
	h.CheckIndices(c)
}

// --- Ping Handler ---
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}
