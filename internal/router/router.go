package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing

    "github.com/iliyamo/natours-api/internal/handler"    // handlers implementing each endpoint
    "github.com/iliyamo/natours-api/internal/middleware" // authentication, roles, rate limiting and caching
    "github.com/iliyamo/natours-api/internal/model"
)

// Guards bundles the middleware the resource routes are assembled from.
// Cache and Invalidate may be pass-through when Redis is unavailable.
type Guards struct {
    Protect    echo.MiddlewareFunc // authenticates the bearer token
    RateLimit  echo.MiddlewareFunc // applied to every /api route
    Cache      echo.MiddlewareFunc // serves repeated public tour reads
    Invalidate echo.MiddlewareFunc // purges cached reads after a write
}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
    // Load balancers and monitoring probe this endpoint.
    e.GET("/healthz", handler.Health(db))
}

// API returns the versioned group every resource hangs off.
func API(e *echo.Echo, g Guards) *echo.Group {
    return e.Group("/api/v1", g.RateLimit)
}

// RegisterUsers registers authentication, self-service and admin user
// routes under /api/v1/users.  User writes purge the cache because tour
// reads embed guide and reviewer details.
func RegisterUsers(api *echo.Group, g Guards, a *handler.AuthHandler, u *handler.UserHandler) {
    users := api.Group("/users")

    // Operations that create a session do not require one.
    users.POST("/signup", a.Signup)
    users.POST("/login", a.Login)
    users.POST("/forgetPassword", a.ForgotPassword)
    users.PATCH("/resetPassword/:token", a.ResetPassword)

    // Everything below needs a valid, unrevoked token.
    me := users.Group("", g.Protect)
    me.POST("/logout", a.Logout)
    me.PATCH("/updateMyPassword", a.UpdatePassword)
    me.GET("/me", u.GetMe)
    me.PATCH("/updateMe", u.UpdateMe, g.Invalidate)
    me.DELETE("/deleteMe", u.DeleteMe, g.Invalidate)
    me.PATCH("/deleteMe", u.DeleteMe, g.Invalidate)

    // Account administration is limited to admins.
    admin := users.Group("", g.Protect, middleware.RestrictTo(model.RoleAdmin))
    admin.GET("", u.GetAllUsers())
    admin.POST("", u.CreateUser())
    admin.GET("/:id", u.GetUser())
    admin.PATCH("/:id", u.UpdateUser(), g.Invalidate)
    admin.DELETE("/:id", u.DeleteUser(), g.Invalidate)
}

// RegisterTours registers tour routes and the reviews nested under a tour.
// Public reads go through the response cache; writes purge it.
func RegisterTours(api *echo.Group, g Guards, t *handler.TourHandler, r *handler.ReviewHandler) {
    tours := api.Group("/tours")
    staff := middleware.RestrictTo(model.RoleAdmin, model.RoleLeadGuide)

    tours.GET("/top-5-cheap", t.TopCheap(), g.Cache)
    tours.GET("/tour-stats", t.TourStats, g.Cache)
    tours.GET("/monthly-plan/:year", t.MonthlyPlan,
        g.Protect, middleware.RestrictTo(model.RoleAdmin, model.RoleLeadGuide, model.RoleGuide))

    tours.GET("", t.GetAllTours(), g.Cache)
    tours.POST("", t.CreateTour(), g.Protect, staff, g.Invalidate)
    tours.GET("/:id", t.GetTour(), g.Cache)
    tours.PATCH("/:id", t.UpdateTour(), g.Protect, staff, g.Invalidate)
    tours.DELETE("/:id", t.DeleteTour(), g.Protect, staff, g.Invalidate)

    // /tours/:tourId/reviews shares the review handlers with /reviews.
    nested := tours.Group("/:tourId/reviews", g.Protect)
    nested.GET("", r.GetAllReviews())
    nested.POST("", r.CreateReview(), middleware.RestrictTo(model.RoleUser), g.Invalidate)
}

// RegisterReviews registers /api/v1/reviews.  All review routes require a
// session; editing is further limited by ownership inside the service.
func RegisterReviews(api *echo.Group, g Guards, r *handler.ReviewHandler) {
    reviews := api.Group("/reviews", g.Protect)
    owners := middleware.RestrictTo(model.RoleUser, model.RoleAdmin)

    reviews.GET("", r.GetAllReviews())
    reviews.POST("", r.CreateReview(), middleware.RestrictTo(model.RoleUser), g.Invalidate)
    reviews.GET("/:id", r.GetReview())
    reviews.PATCH("/:id", r.UpdateReview(), owners, g.Invalidate)
    reviews.DELETE("/:id", r.DeleteReview(), owners, g.Invalidate)
}
