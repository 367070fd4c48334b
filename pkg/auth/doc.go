// Package auth stores an authenticated principal in the session bound to
// a request.
//
// The package does not check credentials. A login handler that has
// verified the caller calls Set, and later requests read the user back
// with Get:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(binder.Middleware)
//	    r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
//	        acct, err := verify(r)
//	        if err != nil {
//	            http.Error(w, "bad credentials", http.StatusUnauthorized)
//	            return
//	        }
//	        auth.Set(binding.FromContext(r.Context()), acct.ID, acct)
//	    })
//	    r.With(auth.RequireAuth).Get("/account", showAccount)
//	})
//
// The principal is the session's UserID, so it shows up in session.Info
// and survives until the session is deleted or swept.
package auth
