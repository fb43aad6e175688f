// routes/routes.go
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"zipngo/apperror"
	"zipngo/controllers"
	"zipngo/metrics"
	"zipngo/middleware"
	"zipngo/utils"
)

// APIPrefix is where every application route is mounted.
const APIPrefix = "/api/zipngo"

// Middlewares groups the middleware the router needs. Common wraps every
// request, including the ones no route matches.
type Middlewares struct {
	Common    []mux.MiddlewareFunc
	Auth      mux.MiddlewareFunc
	RateLimit mux.MiddlewareFunc
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, mw Middlewares, userController *controllers.UserController, productController *controllers.ProductController, orderController *controllers.OrderController) {
	// mux only runs Use middleware on matched routes
	router.Use(mw.Common...)
	router.NotFoundHandler = chain(http.HandlerFunc(routeNotFound), mw.Common)
	router.MethodNotAllowedHandler = chain(http.HandlerFunc(methodNotAllowed), mw.Common)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := router.PathPrefix(APIPrefix).Subrouter()

	// Credential routes, rate limited per client
	credentials := api.PathPrefix("/user").Subrouter()
	if mw.RateLimit != nil {
		credentials.Use(mw.RateLimit)
	}
	credentials.HandleFunc("/register", userController.Register).Methods(http.MethodPost)
	credentials.HandleFunc("/login", userController.Login).Methods(http.MethodPost)
	credentials.HandleFunc("/password/forgot", userController.ForgotPassword).Methods(http.MethodPost)
	credentials.HandleFunc("/password/reset/{token}", userController.ResetPassword).Methods(http.MethodPut)

	// Public routes
	api.HandleFunc("/user/logout", userController.Logout).Methods(http.MethodGet)
	api.HandleFunc("/product/products", productController.GetProducts).Methods(http.MethodGet)
	api.HandleFunc("/product/details/{id}", productController.GetProductByID).Methods(http.MethodGet)

	// Protected routes
	protected := api.NewRoute().Subrouter()
	protected.Use(mw.Auth)
	protected.HandleFunc("/user/me", userController.GetUserDetails).Methods(http.MethodGet)
	protected.HandleFunc("/user/me/update", userController.UpdateProfile).Methods(http.MethodPut)
	protected.HandleFunc("/user/password/update", userController.UpdatePassword).Methods(http.MethodPut)
	protected.HandleFunc("/order/new", orderController.CreateOrder).Methods(http.MethodPost)
	protected.HandleFunc("/order/my/orders", orderController.GetMyOrders).Methods(http.MethodGet)
	protected.HandleFunc("/order/{id}", orderController.GetSingleOrder).Methods(http.MethodGet)

	// Admin routes
	admin := api.NewRoute().Subrouter()
	admin.Use(mw.Auth)
	admin.Use(middleware.AdminMiddleware)
	admin.HandleFunc("/user/admin/users", userController.GetAllUsers).Methods(http.MethodGet)
	admin.HandleFunc("/user/admin/user/{id}", userController.GetUserDetailsForAdmin).Methods(http.MethodGet)
	admin.HandleFunc("/user/admin/user/{id}", userController.UpdateUserProfileAndRole).Methods(http.MethodPut)
	admin.HandleFunc("/user/admin/user/{id}", userController.DeleteUser).Methods(http.MethodDelete)
	admin.HandleFunc("/order/orders/placed", orderController.GetAllOrders).Methods(http.MethodGet)
	admin.HandleFunc("/order/update/{id}", orderController.UpdateOrder).Methods(http.MethodPut)
	admin.HandleFunc("/product/add", productController.CreateProduct).Methods(http.MethodPost)
	admin.HandleFunc("/product/update/{id}", productController.UpdateProduct).Methods(http.MethodPut)
	admin.HandleFunc("/product/delete/{id}", productController.DeleteProduct).Methods(http.MethodDelete)
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	utils.WriteError(w, r, apperror.NotFound("Route not found"))
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	utils.WriteJSON(w, http.StatusMethodNotAllowed, utils.Envelope{
		"success": false,
		"message": "Method not allowed",
	})
}

// chain wraps h so that mws[0] runs first.
func chain(h http.Handler, mws []mux.MiddlewareFunc) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
